// Package pipeline runs the two batch stages. Stage 1 scans the corpus,
// builds the similarity graph and persists it. Stage 2 reloads the
// persisted graph and derives transition maps and shortest paths.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/extract"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/scanner"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// BuildStats summarises a Stage 1 run
type BuildStats struct {
	Files     int
	Skipped   int
	Errors    int
	Documents int
	Nodes     int
	Edges     int
	Duration  time.Duration
}

// DeriveStats summarises a Stage 2 run
type DeriveStats struct {
	Nodes          int
	TransitionMaps int
	Important      int
	Paths          int
	Duration       time.Duration
}

// Config holds the collaborators of a pipeline
type Config struct {
	Store     store.GraphStore
	Scanner   *scanner.Scanner
	Extractor *extract.Extractor
	Settings  graph.Settings
	Include   []string // Absolute scan roots
}

// Pipeline wires scanning, extraction and both graph stages to one store
type Pipeline struct {
	store     store.GraphStore
	scanner   *scanner.Scanner
	extractor *extract.Extractor
	settings  graph.Settings
	include   []string
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(nil)
	}
	cfg.Settings.Validate()

	return &Pipeline{
		store:     cfg.Store,
		scanner:   cfg.Scanner,
		extractor: cfg.Extractor,
		settings:  cfg.Settings,
		include:   cfg.Include,
	}, nil
}

// Scan walks the include roots and returns the files found
func (p *Pipeline) Scan(ctx context.Context) (*scanner.Result, error) {
	res, err := p.scanner.Scan(ctx, p.include)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	for _, e := range res.Errors {
		slog.Warn("Skipped unreadable file", "error", e)
	}
	return res, nil
}

// Build runs Stage 1 over a fresh scan of the corpus
func (p *Pipeline) Build(ctx context.Context) (BuildStats, error) {
	start := time.Now()

	res, err := p.Scan(ctx)
	if err != nil {
		return BuildStats{}, err
	}
	docs := p.extractor.Documents(res.Files)

	g, err := BuildGraph(ctx, p.store, docs, p.settings)
	if err != nil {
		return BuildStats{}, err
	}

	if idx, ok := p.store.(store.ConceptIndex); ok {
		if err := idx.IndexConcepts(ctx, p.extractor.Vocabulary(), docs); err != nil {
			return BuildStats{}, fmt.Errorf("failed to index concepts: %w", err)
		}
	}

	stats := BuildStats{
		Files:     len(res.Files),
		Skipped:   res.Skipped,
		Errors:    len(res.Errors),
		Documents: len(docs),
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
		Duration:  time.Since(start),
	}
	slog.Info("Stage 1 complete",
		"files", stats.Files,
		"skipped", stats.Skipped,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// Derive runs Stage 2 against the persisted graph
func (p *Pipeline) Derive(ctx context.Context) (DeriveStats, error) {
	return DeriveTransitions(ctx, p.store, p.settings)
}

// Run executes both stages in order
func (p *Pipeline) Run(ctx context.Context) (BuildStats, DeriveStats, error) {
	built, err := p.Build(ctx)
	if err != nil {
		return BuildStats{}, DeriveStats{}, err
	}
	derived, err := p.Derive(ctx)
	if err != nil {
		return built, DeriveStats{}, err
	}
	return built, derived, nil
}

// BuildGraph scores docs into a graph and persists it. An empty document
// list produces and persists an empty graph.
func BuildGraph(ctx context.Context, st store.GraphStore, docs []document.Document, settings graph.Settings) (*graph.Graph, error) {
	g, err := graph.NewBuilder(settings).Build(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	if err := st.SaveGraph(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	return g, nil
}

// DeriveTransitions loads the persisted graph and stores transition maps
// for every node and shortest paths between the important nodes. It
// returns store.ErrGraphNotFound, wrapped, when Stage 1 never ran.
func DeriveTransitions(ctx context.Context, st store.GraphStore, settings graph.Settings) (DeriveStats, error) {
	start := time.Now()
	settings.Validate()

	g, err := st.LoadGraph(ctx)
	if err != nil {
		if errors.Is(err, store.ErrGraphNotFound) {
			return DeriveStats{}, fmt.Errorf("cannot derive transitions: %w", err)
		}
		return DeriveStats{}, fmt.Errorf("failed to load graph: %w", err)
	}

	maps := graph.TransitionMaps(g, settings)
	if err := st.SaveTransitionMaps(ctx, maps); err != nil {
		return DeriveStats{}, fmt.Errorf("failed to save transition maps: %w", err)
	}

	important := graph.ImportantNodes(g, settings)
	paths, err := graph.NewPathEngine(g, settings).AllPairs(ctx, important)
	if err != nil {
		return DeriveStats{}, err
	}
	if err := st.SavePaths(ctx, paths); err != nil {
		return DeriveStats{}, fmt.Errorf("failed to save paths: %w", err)
	}

	stats := DeriveStats{
		Nodes:          len(g.Nodes),
		TransitionMaps: len(maps),
		Important:      len(important),
		Paths:          paths.Count(),
		Duration:       time.Since(start),
	}
	slog.Info("Stage 2 complete",
		"maps", stats.TransitionMaps,
		"important", stats.Important,
		"paths", stats.Paths,
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}
