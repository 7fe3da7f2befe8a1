// Package scanner walks the configured include roots and reads the files
// that pass the filter.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wouteroostervld/contextmesh/pkg/filter"
)

// DefaultMaxFileSize skips files larger than 1 MiB
const DefaultMaxFileSize = 1 << 20

// File is a scanned corpus file
type File struct {
	Path    string // Absolute path on disk
	RelPath string // Slash-separated ID relative to the project root
	Content string
}

// Result summarises a scan
type Result struct {
	Files    []File
	Skipped  int
	Errors   []error
	Duration time.Duration
}

// Config configures a Scanner
type Config struct {
	// Base anchors the relative IDs, normally the project root.
	Base        string
	Filter      *filter.Filter
	MaxFileSize int64
}

// Scanner reads files below a set of include roots
type Scanner struct {
	base        string
	filter      *filter.Filter
	maxFileSize int64
}

// New creates a scanner. A nil filter admits everything except
// node_modules and dot-directories.
func New(cfg Config) (*Scanner, error) {
	if cfg.Filter == nil {
		f, err := filter.New(filter.Options{})
		if err != nil {
			return nil, err
		}
		cfg.Filter = f
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	base, err := filepath.Abs(cfg.Base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base: %w", err)
	}
	return &Scanner{base: base, filter: cfg.Filter, maxFileSize: cfg.MaxFileSize}, nil
}

// Scan walks every root in order. Missing roots are skipped; per-file
// errors are collected in the result without aborting the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*Result, error) {
	result := &Result{}
	start := time.Now()
	seen := make(map[string]bool)

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Include root does not exist", "path", abs)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat root %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("include root %s is not a directory", abs)
		}

		before := len(result.Files)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("walk error for %s: %w", path, err))
				return nil
			}
			if d.IsDir() {
				if path != abs && s.filter.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || seen[path] {
				return nil
			}
			seen[path] = true

			if !s.filter.AllowFile(path) {
				result.Skipped++
				return nil
			}

			file, ok, err := s.read(path, abs, d)
			if err != nil {
				result.Errors = append(result.Errors, err)
				return nil
			}
			if !ok {
				result.Skipped++
				return nil
			}
			result.Files = append(result.Files, file)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("directory walk failed: %w", err)
		}

		slog.Debug("Scanned include root", "path", abs, "files", len(result.Files)-before)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *Scanner) read(path, root string, d fs.DirEntry) (File, bool, error) {
	info, err := d.Info()
	if err != nil {
		return File{}, false, fmt.Errorf("stat error for %s: %w", path, err)
	}
	if info.Size() > s.maxFileSize {
		slog.Debug("Skipping large file", "path", path, "size", info.Size())
		return File{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, false, fmt.Errorf("read error for %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		slog.Debug("Skipping non UTF-8 file", "path", path)
		return File{}, false, nil
	}

	return File{Path: path, RelPath: s.relPath(path, root), Content: string(data)}, true, nil
}

// relPath returns path relative to the base, or relative to the root's
// parent when the root lies outside the base.
func (s *Scanner) relPath(path, root string) string {
	anchor := s.base
	if rel, err := filepath.Rel(anchor, path); err != nil || strings.HasPrefix(rel, "..") {
		anchor = filepath.Dir(root)
	}
	rel, err := filepath.Rel(anchor, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
