package upload

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const validPlan = `plans:
  - name: "Push Day"
    assigned_to: "alice@example.com"
    sessions:
      - name: "A"
        exercises:
          - name: "Bench Press"
            sets: "3"
            reps: 8
`

const unassignedPlan = `plans:
  - name: "Nobody's Plan"
    sessions:
      - name: "A"
        exercises:
          - name: "Row"
            sets: "3"
            reps: 10
`

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newPlanServer counts accepted uploads and answers with one upserted plan each.
func newPlanServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"upserted":1}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openState(t *testing.T) *StateDB {
	t.Helper()
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

func TestRunSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.yaml"), validPlan)
	writeFile(t, filepath.Join(dir, "broken.yml"), "plans: [")
	writeFile(t, filepath.Join(dir, "team", "unassigned.yaml"), unassignedPlan)
	writeFile(t, filepath.Join(dir, "README.md"), "not a plan")

	var calls atomic.Int32
	srv := newPlanServer(t, &calls)
	state := openState(t)
	client := newTestClient(srv.URL)

	stats, err := New(client, state, srv.URL, dir, false, discardLog).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{FilesTotal: 3, FilesUploaded: 1, FilesErrored: 2, PlansSent: 1}
	if diff := cmp.Diff(want, *stats); diff != "" {
		t.Errorf("first run (-want +got):\n%s", diff)
	}

	stats, err = New(client, state, srv.URL, dir, false, discardLog).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want = Stats{FilesTotal: 3, FilesSkipped: 1, FilesErrored: 2}
	if diff := cmp.Diff(want, *stats); diff != "" {
		t.Errorf("second run (-want +got):\n%s", diff)
	}

	writeFile(t, filepath.Join(dir, "push.yaml"), validPlan+"            notes: \"heavier\"\n")
	stats, err = New(client, state, srv.URL, dir, false, discardLog).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesUploaded != 1 {
		t.Errorf("changed file uploaded = %d, want 1", stats.FilesUploaded)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestRunStateIsPerServer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.yaml"), validPlan)

	var calls atomic.Int32
	srv := newPlanServer(t, &calls)
	state := openState(t)
	client := newTestClient(srv.URL)

	for _, server := range []string{"https://a.example", "https://b.example"} {
		if _, err := New(client, state, server, dir, false, discardLog).Run(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want one per server", calls.Load())
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.yaml"), validPlan)

	var calls atomic.Int32
	srv := newPlanServer(t, &calls)
	state := openState(t)

	for range 2 {
		stats, err := New(newTestClient(srv.URL), state, srv.URL, dir, true, discardLog).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		want := Stats{FilesTotal: 1, PlansSent: 1}
		if diff := cmp.Diff(want, *stats); diff != "" {
			t.Errorf("dry run (-want +got):\n%s", diff)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("dry run sent %d requests", calls.Load())
	}
}

func TestRunFailedUploadIsRetriedNextRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "push.yaml"), validPlan)

	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"upserted":1}`))
	}))
	defer srv.Close()
	state := openState(t)

	stats, _ := New(newTestClient(srv.URL), state, srv.URL, dir, false, discardLog).Run(context.Background())
	if stats.FilesErrored != 1 {
		t.Fatalf("errored = %d, want 1", stats.FilesErrored)
	}

	fail.Store(false)
	stats, _ = New(newTestClient(srv.URL), state, srv.URL, dir, false, discardLog).Run(context.Background())
	if stats.FilesUploaded != 1 {
		t.Errorf("uploaded = %d, want 1", stats.FilesUploaded)
	}
}

func TestPlanFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yml"), validPlan)
	writeFile(t, filepath.Join(dir, "a.YAML"), validPlan)
	writeFile(t, filepath.Join(dir, "sub", "c.yaml"), validPlan)
	writeFile(t, filepath.Join(dir, ".git", "d.yaml"), validPlan)
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")

	got, err := PlanFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.YAML"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PlanFiles (-want +got):\n%s", diff)
	}

	single, err := PlanFiles(filepath.Join(dir, "b.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 {
		t.Errorf("single file = %v", single)
	}

	if _, err := PlanFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}
