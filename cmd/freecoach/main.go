package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/freecoach/internal/checkpoint"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/identity"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/server"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("FreeCoach starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Requests without a tailnet identity act as this user.
	devUserID, err := db.GetOrCreateUser(ctx, server.DevUser.Login, server.DevUser.DisplayName)
	if err != nil {
		log.Error("failed to create dev user", "error", err)
		os.Exit(1)
	}

	policy := cfg.Workout.Policy()
	sessions := workout.NewSessions(db, identity.Context{}, db, policy, log)
	if cfg.Checkpoint.Enabled {
		cp, err := checkpoint.Open(cfg.Checkpoint.Dir)
		if err != nil {
			log.Error("failed to open checkpoint store", "error", err)
			os.Exit(1)
		}
		defer cp.Close()
		sessions.SetCheckpointer(cp)
		log.Info("workout checkpoints enabled", "dir", cfg.Checkpoint.Dir)
	}

	srv := server.New(db, sessions, cfg.Auth.APIKey, log)
	srv.SetDevUser(devUserID)
	srv.SetMCP(mcp.NewHTTPHandler(mcp.New(mcp.Local{DB: db, Sessions: sessions}, Version, log)))

	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)", "dev_user_id", devUserID)
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), policy.FinalizeTimeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
