package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/freecoach/internal/workout"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Workout    WorkoutConfig    `yaml:"workout"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig guards trainer endpoints such as plan uploads.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// TailscaleConfig switches the listener to tsnet and identifies users
// through WhoIs. When disabled every request acts as the local dev user.
type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// WorkoutConfig tunes points and rest periods. Durations are in seconds.
type WorkoutConfig struct {
	BaseXP                 int `yaml:"base_xp"`
	PerExerciseXP          int `yaml:"per_exercise_xp"`
	SetRestSeconds         int `yaml:"set_rest_seconds"`
	ExerciseRestSeconds    int `yaml:"exercise_rest_seconds"`
	FinalizeTimeoutSeconds int `yaml:"finalize_timeout_seconds"`
}

// CheckpointConfig enables the on-disk copy of in-progress workouts.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Policy converts the workout section into a workout.Policy.
func (w WorkoutConfig) Policy() workout.Policy {
	return workout.Policy{
		BaseXP:          w.BaseXP,
		PerExerciseXP:   w.PerExerciseXP,
		SetRest:         time.Duration(w.SetRestSeconds) * time.Second,
		ExerciseRest:    time.Duration(w.ExerciseRestSeconds) * time.Second,
		FinalizeTimeout: time.Duration(w.FinalizeTimeoutSeconds) * time.Second,
	}
}

func defaults() *Config {
	p := workout.DefaultPolicy()
	return &Config{
		Tailscale: TailscaleConfig{Hostname: "freecoach", StateDir: "tsnet-state"},
		Workout: WorkoutConfig{
			BaseXP:                 p.BaseXP,
			PerExerciseXP:          p.PerExerciseXP,
			SetRestSeconds:         int(p.SetRest / time.Second),
			ExerciseRestSeconds:    int(p.ExerciseRest / time.Second),
			FinalizeTimeoutSeconds: int(p.FinalizeTimeout / time.Second),
		},
		Checkpoint: CheckpointConfig{Dir: "state"},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Keys missing from the file keep their defaults. Env vars use the prefix
// FREECOACH_ and underscore-separated paths:
//
//	FREECOACH_SERVER_HOST, FREECOACH_SERVER_PORT,
//	FREECOACH_DB_HOST, FREECOACH_DB_PORT, FREECOACH_DB_NAME,
//	FREECOACH_DB_USER, FREECOACH_DB_PASSWORD, FREECOACH_DB_SSLMODE,
//	FREECOACH_AUTH_API_KEY,
//	FREECOACH_TAILSCALE_ENABLED, FREECOACH_TAILSCALE_HOSTNAME, FREECOACH_TAILSCALE_STATE_DIR,
//	FREECOACH_WORKOUT_BASE_XP, FREECOACH_WORKOUT_PER_EXERCISE_XP,
//	FREECOACH_WORKOUT_SET_REST_SECONDS, FREECOACH_WORKOUT_EXERCISE_REST_SECONDS,
//	FREECOACH_WORKOUT_FINALIZE_TIMEOUT_SECONDS,
//	FREECOACH_CHECKPOINT_ENABLED, FREECOACH_CHECKPOINT_DIR
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("FREECOACH_SERVER_HOST", &cfg.Server.Host)
	envInt("FREECOACH_SERVER_PORT", &cfg.Server.Port)

	envString("FREECOACH_DB_HOST", &cfg.Database.Host)
	envInt("FREECOACH_DB_PORT", &cfg.Database.Port)
	envString("FREECOACH_DB_NAME", &cfg.Database.Name)
	envString("FREECOACH_DB_USER", &cfg.Database.User)
	envString("FREECOACH_DB_PASSWORD", &cfg.Database.Password)
	envString("FREECOACH_DB_SSLMODE", &cfg.Database.SSLMode)

	envString("FREECOACH_AUTH_API_KEY", &cfg.Auth.APIKey)

	envBool("FREECOACH_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("FREECOACH_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envString("FREECOACH_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)

	envInt("FREECOACH_WORKOUT_BASE_XP", &cfg.Workout.BaseXP)
	envInt("FREECOACH_WORKOUT_PER_EXERCISE_XP", &cfg.Workout.PerExerciseXP)
	envInt("FREECOACH_WORKOUT_SET_REST_SECONDS", &cfg.Workout.SetRestSeconds)
	envInt("FREECOACH_WORKOUT_EXERCISE_REST_SECONDS", &cfg.Workout.ExerciseRestSeconds)
	envInt("FREECOACH_WORKOUT_FINALIZE_TIMEOUT_SECONDS", &cfg.Workout.FinalizeTimeoutSeconds)

	envBool("FREECOACH_CHECKPOINT_ENABLED", &cfg.Checkpoint.Enabled)
	envString("FREECOACH_CHECKPOINT_DIR", &cfg.Checkpoint.Dir)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt ignores values that do not parse, leaving the file value in place.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Checkpoint.Enabled && c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir is required when checkpoints are enabled")
	}
	w := c.Workout
	if w.BaseXP < 0 || w.PerExerciseXP < 0 {
		return fmt.Errorf("workout xp values must not be negative")
	}
	if w.SetRestSeconds < 0 || w.ExerciseRestSeconds < 0 {
		return fmt.Errorf("workout rest periods must not be negative")
	}
	if w.FinalizeTimeoutSeconds <= 0 {
		return fmt.Errorf("workout.finalize_timeout_seconds must be positive")
	}
	return nil
}
