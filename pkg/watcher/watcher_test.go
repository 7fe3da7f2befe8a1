package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/wouteroostervld/contextmesh/pkg/filter"
)

func TestNew(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if w.debounce != time.Second {
		t.Errorf("debounce = %v, want %v", w.debounce, time.Second)
	}
}

func TestWatchTree(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a/b", "node_modules/pkg", ".git/objects", "out"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	f, err := filter.New(filter.Options{})
	if err != nil {
		t.Fatal(err)
	}
	w, err := New(&Config{Filter: f, Ignore: []string{filepath.Join(root, "out")}})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WatchTree(root); err != nil {
		t.Fatalf("WatchTree failed: %v", err)
	}
	// Watching the same tree again should be idempotent
	if err := w.WatchTree(root); err != nil {
		t.Fatalf("second WatchTree failed: %v", err)
	}

	want := []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")}
	slices.Sort(want)
	if got := w.Watched(); !slices.Equal(got, want) {
		t.Errorf("Watched() = %v, want %v", got, want)
	}

	if err := w.WatchTree(filepath.Join(root, "missing")); err != nil {
		t.Errorf("missing root should be ignored, got %v", err)
	}
}

func TestUnwatch(t *testing.T) {
	tempDir := t.TempDir()

	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.WatchTree(tempDir)

	if err := w.Unwatch(tempDir); err != nil {
		t.Errorf("Unwatch failed: %v", err)
	}

	if len(w.Watched()) != 0 {
		t.Error("expected 0 watched dirs after unwatch")
	}
}

func startWatcher(t *testing.T, cfg *Config) (*FileWatcher, chan []string) {
	t.Helper()
	changes := make(chan []string, 10)
	cfg.OnChange = func(paths []string) {
		changes <- paths
	}

	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go w.Start(ctx)
	return w, changes
}

func waitForChange(t *testing.T, changes chan []string) []string {
	t.Helper()
	select {
	case paths := <-changes:
		return paths
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file change event")
		return nil
	}
}

func TestFileChangeDetection(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test.md")

	w, changes := startWatcher(t, &Config{DebounceDelay: 50 * time.Millisecond})
	if err := w.WatchTree(tempDir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(testFile, []byte("initial"), 0o600); err != nil {
		t.Fatal(err)
	}

	paths := waitForChange(t, changes)
	if !slices.Contains(paths, testFile) {
		t.Errorf("got change for %v, want %s", paths, testFile)
	}
}

func TestDebounceBatchesPaths(t *testing.T) {
	tempDir := t.TempDir()
	first := filepath.Join(tempDir, "a.md")
	second := filepath.Join(tempDir, "b.md")

	w, changes := startWatcher(t, &Config{DebounceDelay: 150 * time.Millisecond})
	w.WatchTree(tempDir)

	// Write multiple times rapidly
	for i := 0; i < 5; i++ {
		os.WriteFile(first, []byte(string(rune('a'+i))), 0o600)
		os.WriteFile(second, []byte(string(rune('a'+i))), 0o600)
		time.Sleep(20 * time.Millisecond)
	}

	paths := waitForChange(t, changes)
	if !slices.Equal(paths, []string{first, second}) {
		t.Errorf("batch = %v, want both files once", paths)
	}

	// Should only get ONE debounced batch
	select {
	case extra := <-changes:
		t.Errorf("unexpected second batch %v", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestFilteredFilesIgnored(t *testing.T) {
	tempDir := t.TempDir()
	f, err := filter.New(filter.Options{Extensions: []string{".md"}})
	if err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t, &Config{DebounceDelay: 50 * time.Millisecond, Filter: f})
	w.WatchTree(tempDir)

	os.WriteFile(filepath.Join(tempDir, "image.png"), []byte("png"), 0o600)

	select {
	case paths := <-changes:
		t.Errorf("filtered file triggered a change: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewDirectoryIsWatched(t *testing.T) {
	tempDir := t.TempDir()

	w, changes := startWatcher(t, &Config{DebounceDelay: 50 * time.Millisecond})
	w.WatchTree(tempDir)

	nested := filepath.Join(tempDir, "nested")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, changes)

	if !slices.Contains(w.Watched(), nested) {
		t.Fatalf("new directory %s is not watched: %v", nested, w.Watched())
	}

	file := filepath.Join(nested, "deep.md")
	os.WriteFile(file, []byte("# Deep"), 0o600)
	if paths := waitForChange(t, changes); !slices.Contains(paths, file) {
		t.Errorf("got %v, want change for %s", paths, file)
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(config, []byte("version: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t, &Config{DebounceDelay: 50 * time.Millisecond})
	if err := w.WatchFile(config); err != nil {
		t.Fatal(err)
	}

	// Siblings of a single watched file are not relevant
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600)
	os.WriteFile(config, []byte("version: 2\n"), 0o600)

	paths := waitForChange(t, changes)
	if !slices.Equal(paths, []string{config}) {
		t.Errorf("got %v, want only %s", paths, config)
	}
}
