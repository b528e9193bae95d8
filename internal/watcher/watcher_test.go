package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) waitFor(t *testing.T, path string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, p := range r.paths {
			if p == path {
				r.mu.Unlock()
				return true
			}
		}
		r.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestWatcherSyncsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.record)
	w.debounce = 50 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if !rec.waitFor(t, existing, 2*time.Second) {
		t.Error("existing file was not picked up on start")
	}
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.record)
	w.debounce = 50 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	created := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(created, []byte("fresh content"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if !rec.waitFor(t, created, 2*time.Second) {
		t.Error("new file was not ingested")
	}
}

func TestWatcherFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".md"}, true, rec.record)
	w.debounce = 50 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	wanted := filepath.Join(dir, "readme.md")
	ignored := filepath.Join(dir, "binary.bin")
	if err := os.WriteFile(ignored, []byte("skip me"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(wanted, []byte("keep me"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if !rec.waitFor(t, wanted, 2*time.Second) {
		t.Fatal("matching file was not ingested")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range rec.paths {
		if p == ignored {
			t.Error("non-matching extension was ingested")
		}
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{dir}, nil, false, func(string) {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcherContextCancel(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher([]string{dir}, nil, false, rec.record)
	w.debounce = 20 * time.Millisecond
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	// After cancellation the run loop exits; Stop is safe to call again.
	time.Sleep(100 * time.Millisecond)
	w.Stop()
}
