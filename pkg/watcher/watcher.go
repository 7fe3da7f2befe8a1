// Package watcher reruns work when files below the include roots change.
// Changes are debounced into batches; the callback receives every path
// touched since the previous batch.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wouteroostervld/contextmesh/pkg/filter"
)

// FileWatcher watches directory trees and single files for changes
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(paths []string)
	filter   *filter.Filter
	ignore   []string
	debounce time.Duration

	mu      sync.Mutex
	watched map[string]bool // directories registered with fsnotify
	trees   map[string]bool // roots watched recursively
	files   map[string]bool // single files watched through their parent
	pending map[string]bool
	timer   *time.Timer
}

// Config holds watcher configuration
type Config struct {
	DebounceDelay time.Duration // Quiet period before OnChange fires (default: 1s)
	OnChange      func(paths []string)
	Filter        *filter.Filter // Optional; files it rejects are ignored
	Ignore        []string       // Path prefixes to ignore, e.g. the output directory
}

// New creates a new file watcher
func New(cfg *Config) (*FileWatcher, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ignore := make([]string, 0, len(cfg.Ignore))
	for _, p := range cfg.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}

	return &FileWatcher{
		watcher:  watcher,
		onChange: cfg.OnChange,
		filter:   cfg.Filter,
		ignore:   ignore,
		debounce: cfg.DebounceDelay,
		watched:  make(map[string]bool),
		trees:    make(map[string]bool),
		files:    make(map[string]bool),
		pending:  make(map[string]bool),
	}, nil
}

// WatchTree watches root and every directory below it that the filter
// does not skip. Missing roots are ignored.
func (w *FileWatcher) WatchTree(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Watch root does not exist", "path", abs)
		return nil
	}

	w.mu.Lock()
	w.trees[abs] = true
	w.mu.Unlock()

	return w.addTree(abs)
}

func (w *FileWatcher) addTree(abs string) error {
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && (w.skipDir(path) || w.ignored(path)) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

// WatchFile watches a single file, such as a config file. The parent
// directory is watched so the file may be replaced atomically.
func (w *FileWatcher) WatchFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := w.addDir(filepath.Dir(abs)); err != nil {
		return err
	}

	w.mu.Lock()
	w.files[abs] = true
	w.mu.Unlock()
	return nil
}

func (w *FileWatcher) addDir(abs string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched[abs] {
		return nil // Already watching
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	w.watched[abs] = true
	return nil
}

// Unwatch removes a directory from the watch list
func (w *FileWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if !w.watched[abs] {
		return nil // Not watching
	}

	if err := w.watcher.Remove(abs); err != nil {
		return fmt.Errorf("failed to unwatch %s: %w", abs, err)
	}

	delete(w.watched, abs)
	delete(w.trees, abs)
	return nil
}

// Start processes events until ctx is cancelled
func (w *FileWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Log error but continue watching
			slog.Warn("Watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 && w.inTree(path) && !w.ignored(path) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.skipDir(path) {
				return
			}
			if err := w.addTree(path); err != nil {
				slog.Warn("Failed to watch new directory", "path", path, "error", err)
			}
			w.schedule(path)
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forget(path) {
		w.schedule(path)
		return
	}

	if w.relevant(path) {
		w.schedule(path)
	}
}

// forget drops a removed directory, reporting whether it was watched
func (w *FileWatcher) forget(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watched[path] {
		return false
	}
	delete(w.watched, path)
	delete(w.trees, path)
	return true
}

func (w *FileWatcher) relevant(path string) bool {
	w.mu.Lock()
	explicit := w.files[path]
	w.mu.Unlock()

	if explicit {
		return true
	}
	if !w.inTree(path) || w.ignored(path) {
		return false
	}
	return w.filter == nil || w.filter.AllowFile(path)
}

func (w *FileWatcher) inTree(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for root := range w.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *FileWatcher) ignored(path string) bool {
	for _, prefix := range w.ignore {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *FileWatcher) skipDir(path string) bool {
	return w.filter != nil && w.filter.SkipDir(path)
}

// schedule adds path to the pending batch and restarts the quiet period
func (w *FileWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *FileWatcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	slog.Debug("Debounced changes", "paths", len(paths))
	if w.onChange != nil {
		w.onChange(paths)
	}
}

// Close stops the watcher and releases resources
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]bool)

	return w.watcher.Close()
}

// Watched returns the list of watched directories
func (w *FileWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.watched))
	for path := range w.watched {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
