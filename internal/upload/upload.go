package upload

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/freecoach/internal/catalog"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int
	PlansSent     int
}

// planSender is the part of Client the uploader needs.
type planSender interface {
	SendPlans(ctx context.Context, data []byte) (*Result, error)
}

// Uploader walks a directory of YAML plan files, validates each one locally,
// and sends the files that changed since the last run to the server.
type Uploader struct {
	client planSender
	state  *StateDB
	server string
	root   string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. root may be a directory or a single plan file;
// server keys the upload state so one file can be sent to several servers.
func New(client planSender, state *StateDB, server, root string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		server: server,
		root:   root,
		dryRun: dryRun,
		log:    log,
	}
}

// Run executes the upload pipeline. Per-file failures are counted and logged;
// only a failure to list the plan files aborts the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := PlanFiles(u.root)
	if err != nil {
		return &u.stats, err
	}

	base := u.root
	if fi, err := os.Stat(u.root); err == nil && !fi.IsDir() {
		base = filepath.Dir(u.root)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		relPath, _ := filepath.Rel(base, f)
		u.processFile(ctx, f, relPath)
	}

	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, path, relPath string) {
	data, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("read failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}

	hash := hashBytes(data)
	uploaded, err := u.state.IsUploaded(relPath, u.server, hash)
	if err != nil {
		u.log.Warn("state check failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}
	if uploaded {
		u.stats.FilesSkipped++
		return
	}

	plans, err := catalog.Parse(bytes.NewReader(data))
	if err != nil {
		u.log.Warn("invalid plan file", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}
	for i, p := range plans {
		if strings.TrimSpace(p.AssignedTo) == "" {
			u.log.Warn("invalid plan file", "file", relPath,
				"error", fmt.Sprintf("plan %d (%q): assigned_to is required", i+1, p.Name))
			u.stats.FilesErrored++
			return
		}
	}

	if u.dryRun {
		for _, p := range plans {
			u.log.Info("dry-run: would send plan",
				"file", relPath,
				"plan", p.Name,
				"assigned_to", p.AssignedTo,
				"sessions", len(p.Sessions),
			)
		}
		u.stats.PlansSent += len(plans)
		return
	}

	result, err := u.client.SendPlans(ctx, data)
	if err != nil {
		u.log.Warn("upload failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}

	if err := u.state.MarkUploaded(relPath, u.server, hash, result.Upserted); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}
	u.stats.FilesUploaded++
	u.stats.PlansSent += result.Upserted

	u.log.Info("uploaded plan file", "file", relPath, "plans", result.Upserted)
}

// PlanFiles returns the .yaml and .yml files under root in lexical order.
// A root that is itself a file is returned as the only entry.
func PlanFiles(root string) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	if !fi.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
