package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type savedRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *savedRecorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *savedRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestExistingFileDoesNotFireAtStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.blend")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &savedRecorder{}
	w := New(path, rec.record)
	w.interval = 5 * time.Millisecond
	w.Start()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("unchanged file fired %d events", rec.count())
	}
}

func TestDetectsModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.blend")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &savedRecorder{}
	w := New(path, rec.record)
	w.interval = 5 * time.Millisecond
	w.Start()
	defer w.Stop()

	// Size change is enough; mtime granularity can be coarse on some
	// filesystems.
	if err := os.WriteFile(path, []byte("v2 longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return rec.count() >= 1 })
	rec.mu.Lock()
	got := rec.paths[0]
	rec.mu.Unlock()
	if got != path {
		t.Fatalf("callback path = %q, want %q", got, path)
	}
}

func TestDetectsCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.blend")

	rec := &savedRecorder{}
	w := New(path, rec.record)
	w.interval = 5 * time.Millisecond
	w.Start()
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return rec.count() >= 1 })
}

func TestStopIdempotent(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "x.blend"), func(string) {})
	w.Start()
	w.Stop()
	w.Stop()
}
