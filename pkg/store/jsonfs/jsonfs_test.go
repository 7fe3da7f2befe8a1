package jsonfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

func sampleGraph() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "docs/a.md", Title: "A", Type: document.TypeDocumentation, Summary: "About A"},
			{ID: ".cursor/rules/b.mdc", Title: "B", Type: document.TypeRule, Summary: "About B"},
			{ID: "src/c.ts", Title: "C", Type: document.TypeSource},
		},
		Edges: []graph.Edge{
			{Source: "docs/a.md", Target: ".cursor/rules/b.mdc", Similarity: 0.55, Concepts: []string{"cache", "search"}},
			{Source: ".cursor/rules/b.mdc", Target: "src/c.ts", Similarity: 0.15, Concepts: []string{}},
		},
	}
}

var ignoreIndex = cmpopts.IgnoreUnexported(graph.Graph{})

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	want := sampleGraph()
	if err := s.SaveGraph(ctx, want); err != nil {
		t.Fatalf("SaveGraph() error = %v", err)
	}
	got, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph() error = %v", err)
	}
	if diff := cmp.Diff(want, got, ignoreIndex); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
	if got.Degree(".cursor/rules/b.mdc") != 2 {
		t.Error("loaded graph should be indexed")
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), GraphFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"nodes\": [") {
		t.Errorf("graph file is not indented with two spaces:\n%s", data)
	}
}

func TestLoadGraphMissingVersusEmpty(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, err := s.LoadGraph(ctx); !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("LoadGraph() error = %v, want ErrGraphNotFound", err)
	}
	if _, err := s.Metadata(ctx); !errors.Is(err, store.ErrGraphNotFound) {
		t.Errorf("Metadata() error = %v, want ErrGraphNotFound", err)
	}

	if err := s.SaveGraph(ctx, &graph.Graph{}); err != nil {
		t.Fatal(err)
	}
	g, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("empty graph should load, got %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected empty graph, got %+v", g)
	}
}

func TestLoadGraphRejectsInvalid(t *testing.T) {
	s := openStore(t)
	bad := `{"nodes":[{"id":"a"}],"edges":[{"source":"a","target":"ghost","similarity":0.5}]}`
	if err := os.WriteFile(filepath.Join(s.Dir(), GraphFile), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadGraph(context.Background()); !errors.Is(err, graph.ErrInvalidGraph) {
		t.Errorf("LoadGraph() error = %v, want ErrInvalidGraph", err)
	}
}

func TestTransitionMapsAndPaths(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	g := sampleGraph()
	settings := graph.DefaultSettings()

	if err := s.SaveGraph(ctx, g); err != nil {
		t.Fatal(err)
	}
	maps := graph.TransitionMaps(g, settings)
	if err := s.SaveTransitionMaps(ctx, maps); err != nil {
		t.Fatalf("SaveTransitionMaps() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), MapsDir, "docs_a.md.json")); err != nil {
		t.Errorf("expected sanitized map file: %v", err)
	}
	for id, want := range maps {
		got, err := s.LoadTransitionMap(ctx, id)
		if err != nil {
			t.Fatalf("LoadTransitionMap(%s) error = %v", id, err)
		}
		if diff := cmp.Diff(want, *got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("map %s mismatch (-want +got):\n%s", id, diff)
		}
	}
	if _, err := s.LoadTransitionMap(ctx, "nope"); !errors.Is(err, store.ErrMapNotFound) {
		t.Errorf("LoadTransitionMap() error = %v, want ErrMapNotFound", err)
	}

	if _, err := s.LoadPaths(ctx); !errors.Is(err, store.ErrPathsNotFound) {
		t.Errorf("LoadPaths() error = %v, want ErrPathsNotFound", err)
	}
	paths, err := graph.NewPathEngine(g, settings).AllPairs(ctx, []string{"docs/a.md", "src/c.ts"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SavePaths(ctx, paths); err != nil {
		t.Fatalf("SavePaths() error = %v", err)
	}
	got, err := s.LoadPaths(ctx)
	if err != nil {
		t.Fatalf("LoadPaths() error = %v", err)
	}
	if diff := cmp.Diff(paths, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	meta, err := s.Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Nodes != 3 || meta.Edges != 2 || meta.TransitionMaps != 3 || meta.Paths != 2 || meta.RunID == "" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestSaveTransitionMapsRemovesStale(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	g := sampleGraph()

	if err := s.SaveTransitionMaps(ctx, graph.TransitionMaps(g, graph.DefaultSettings())); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePaths(ctx, graph.Paths{}); err != nil {
		t.Fatal(err)
	}

	small := &graph.Graph{Nodes: g.Nodes[:1]}
	if err := s.SaveTransitionMaps(ctx, graph.TransitionMaps(small, graph.DefaultSettings())); err != nil {
		t.Fatal(err)
	}

	if _, err := s.LoadTransitionMap(ctx, "src/c.ts"); !errors.Is(err, store.ErrMapNotFound) {
		t.Errorf("stale map should be removed, got %v", err)
	}
	if _, err := s.LoadPaths(ctx); err != nil {
		t.Errorf("paths file must survive map cleanup: %v", err)
	}
}
