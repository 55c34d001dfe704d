package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/claude/freecoach/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// planNamespace seeds derived IDs for plans written without explicit ids,
// so re-importing the same file updates rather than duplicates.
var planNamespace = uuid.MustParse("8f5d2c1e-3b7a-4e0f-9a61-2d4c8b7e5f10")

// File is the on-disk shape of a plan file.
type File struct {
	Plans []models.TrainingPlan `yaml:"plans"`
}

// Parse reads a YAML plan file, fills in derived IDs, and validates every plan.
func Parse(r io.Reader) ([]models.TrainingPlan, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("plan file is empty")
		}
		return nil, fmt.Errorf("decoding plan file: %w", err)
	}

	for i := range f.Plans {
		assignIDs(&f.Plans[i])
		if err := Validate(&f.Plans[i]); err != nil {
			return nil, fmt.Errorf("plan %d (%q): %w", i+1, f.Plans[i].Name, err)
		}
	}
	return f.Plans, nil
}

// LoadFile parses the plan file at path.
func LoadFile(path string) ([]models.TrainingPlan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks that a plan can be run. Difficulty defaults to beginner.
func Validate(p *models.TrainingPlan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Difficulty == "" {
		p.Difficulty = models.DifficultyBeginner
	}
	if !p.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", p.Difficulty)
	}
	if p.DurationWeeks < 0 || p.SessionsPerWeek < 0 {
		return fmt.Errorf("duration_weeks and sessions_per_week must not be negative")
	}
	if len(p.Sessions) == 0 {
		return fmt.Errorf("at least one session is required")
	}
	seen := make(map[uuid.UUID]bool)
	seenSessions := make(map[uuid.UUID]bool)
	for i, s := range p.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session %d: name is required", i+1)
		}
		if seenSessions[s.ID] {
			return fmt.Errorf("session %q: duplicate id %s", s.Name, s.ID)
		}
		seenSessions[s.ID] = true
		if len(s.Exercises) == 0 {
			return fmt.Errorf("session %q: at least one exercise is required", s.Name)
		}
		for j, ex := range s.Exercises {
			if ex.Name == "" {
				return fmt.Errorf("session %q exercise %d: name is required", s.Name, j+1)
			}
			if ex.Reps < 0 || ex.RestSeconds < 0 {
				return fmt.Errorf("session %q exercise %q: reps and rest_seconds must not be negative", s.Name, ex.Name)
			}
			if seen[ex.ID] {
				return fmt.Errorf("session %q exercise %q: duplicate id %s", s.Name, ex.Name, ex.ID)
			}
			seen[ex.ID] = true
		}
	}
	return nil
}

func assignIDs(p *models.TrainingPlan) {
	if p.ID == uuid.Nil {
		p.ID = uuid.NewSHA1(planNamespace, []byte(p.AssignedTo+"/"+p.Name))
	}
	for i := range p.Sessions {
		s := &p.Sessions[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.NewSHA1(p.ID, []byte(strconv.Itoa(i)+"/"+s.Name))
		}
		for j := range s.Exercises {
			ex := &s.Exercises[j]
			if ex.ID == uuid.Nil {
				ex.ID = uuid.NewSHA1(s.ID, []byte(strconv.Itoa(j)+"/"+ex.Name))
			}
		}
	}
}
