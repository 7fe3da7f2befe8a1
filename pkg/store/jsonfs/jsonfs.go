// Package jsonfs stores the graph and its derived artifacts as pretty
// printed JSON files in a directory:
//
//	<dir>/context-graph.json
//	<dir>/context-meta.json
//	<dir>/transition-maps/<sanitized node id>.json
//	<dir>/transition-maps/context-paths.json
package jsonfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// File names inside the store directory
const (
	GraphFile     = "context-graph.json"
	MetaFile      = "context-meta.json"
	MapsDir       = "transition-maps"
	PathsFile     = "context-paths.json"
	SchemaVersion = "1"
)

// Store is a directory-backed GraphStore
type Store struct {
	dir string
}

var _ store.GraphStore = (*Store)(nil)

// Open creates the directory if needed and returns a store rooted at it
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) graphPath() string { return filepath.Join(s.dir, GraphFile) }
func (s *Store) metaPath() string  { return filepath.Join(s.dir, MetaFile) }
func (s *Store) mapsDir() string   { return filepath.Join(s.dir, MapsDir) }
func (s *Store) pathsPath() string { return filepath.Join(s.dir, MapsDir, PathsFile) }

// MapPath returns the file holding the transition map of nodeID
func (s *Store) MapPath(nodeID string) string {
	return filepath.Join(s.mapsDir(), store.SanitizeKey(nodeID)+".json")
}

func (s *Store) SaveGraph(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSON(s.graphPath(), g); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}

	meta := store.Metadata{
		SchemaVersion: SchemaVersion,
		RunID:         store.NewRunID(),
		GraphSavedAt:  time.Now().UTC(),
		Nodes:         len(g.Nodes),
		Edges:         len(g.Edges),
	}
	if err := writeJSON(s.metaPath(), meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	slog.Debug("Graph saved", "path", s.graphPath(), "run_id", meta.RunID)
	return nil
}

func (s *Store) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var g graph.Graph
	if err := readJSON(s.graphPath(), &g); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrGraphNotFound, s.graphPath())
		}
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.Index()
	return &g, nil
}

func (s *Store) SaveTransitionMaps(ctx context.Context, maps map[string]graph.TransitionMap) error {
	if err := os.MkdirAll(s.mapsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create transition map directory: %w", err)
	}

	keep := make(map[string]bool, len(maps)+1)
	keep[PathsFile] = true
	for id, m := range maps {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.MapPath(id)
		if keep[filepath.Base(path)] {
			slog.Warn("Transition map key collision", "id", id, "file", path)
		}
		keep[filepath.Base(path)] = true
		if err := writeJSON(path, m); err != nil {
			return fmt.Errorf("failed to write transition map for %s: %w", id, err)
		}
	}

	if err := s.removeStale(keep); err != nil {
		return err
	}
	return s.updateMeta(func(m *store.Metadata) {
		m.TransitionMaps = len(maps)
		m.DerivedAt = time.Now().UTC()
	})
}

// removeStale deletes map files left by nodes that no longer exist
func (s *Store) removeStale(keep map[string]bool) error {
	entries, err := os.ReadDir(s.mapsDir())
	if err != nil {
		return fmt.Errorf("failed to list transition maps: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || keep[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.mapsDir(), e.Name())); err != nil {
			return fmt.Errorf("failed to remove stale map: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadTransitionMap(ctx context.Context, nodeID string) (*graph.TransitionMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var m graph.TransitionMap
	if err := readJSON(s.MapPath(nodeID), &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrMapNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to read transition map: %w", err)
	}
	return &m, nil
}

func (s *Store) SavePaths(ctx context.Context, paths graph.Paths) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if paths == nil {
		paths = graph.Paths{}
	}
	if err := os.MkdirAll(s.mapsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create transition map directory: %w", err)
	}
	if err := writeJSON(s.pathsPath(), paths); err != nil {
		return fmt.Errorf("failed to write paths: %w", err)
	}
	return s.updateMeta(func(m *store.Metadata) {
		m.Paths = paths.Count()
		m.DerivedAt = time.Now().UTC()
	})
}

func (s *Store) LoadPaths(ctx context.Context) (graph.Paths, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths := graph.Paths{}
	if err := readJSON(s.pathsPath(), &paths); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrPathsNotFound
		}
		return nil, fmt.Errorf("failed to read paths: %w", err)
	}
	return paths, nil
}

func (s *Store) Metadata(ctx context.Context) (store.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return store.Metadata{}, err
	}
	var meta store.Metadata
	if err := readJSON(s.metaPath(), &meta); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.Metadata{}, store.ErrGraphNotFound
		}
		return store.Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return meta, nil
}

func (s *Store) updateMeta(fn func(*store.Metadata)) error {
	var meta store.Metadata
	if err := readJSON(s.metaPath(), &meta); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	meta.SchemaVersion = SchemaVersion
	fn(&meta)
	if err := writeJSON(s.metaPath(), meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Close is a no-op; every write is flushed before it returns
func (s *Store) Close() error {
	return nil
}

// writeJSON writes v with two-space indentation through a temp file and rename
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
