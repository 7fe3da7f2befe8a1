package graph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

// parallelThreshold is the document count below which pair scoring stays
// on the calling goroutine regardless of Settings.Workers.
const parallelThreshold = 64

// Builder turns documents into a similarity graph
type Builder struct {
	settings Settings
}

// NewBuilder creates a builder with the given settings
func NewBuilder(settings Settings) *Builder {
	settings.Validate()
	return &Builder{settings: settings}
}

// profile is the set view of a document used for pair scoring
type profile struct {
	concepts    []string
	conceptSet  map[string]struct{}
	keywordSet  map[string]struct{}
	conceptSize int
	keywordSize int
	docType     document.Type
}

func newProfile(d document.Document) profile {
	p := profile{
		conceptSet: make(map[string]struct{}, len(d.Concepts)),
		keywordSet: make(map[string]struct{}, len(d.Keywords)),
		docType:    d.Type,
	}
	for _, c := range d.Concepts {
		if _, ok := p.conceptSet[c.Name]; ok {
			continue
		}
		p.conceptSet[c.Name] = struct{}{}
		p.concepts = append(p.concepts, c.Name)
	}
	for _, k := range d.Keywords {
		p.keywordSet[k] = struct{}{}
	}
	p.conceptSize = len(p.conceptSet)
	p.keywordSize = len(p.keywordSet)
	return p
}

// Similarity scores a pair of documents. The result is symmetric and lies in [0,1].
func (b *Builder) Similarity(a, c document.Document) float64 {
	return b.score(newProfile(a), newProfile(c))
}

func (b *Builder) score(a, c profile) float64 {
	conceptScore := float64(intersectCount(a.conceptSet, c.conceptSet)) / float64(max(1, max(a.conceptSize, c.conceptSize)))
	keywordScore := float64(intersectCount(a.keywordSet, c.keywordSet)) / float64(max(1, max(a.keywordSize, c.keywordSize)))

	sim := b.settings.ConceptWeight*conceptScore + b.settings.KeywordWeight*keywordScore
	if a.docType == c.docType {
		sim += b.settings.TypeBonus
	}
	return clamp01(sim)
}

// sharedConcepts returns the concept names of a that also appear in c, in a's order
func sharedConcepts(a, c profile) []string {
	shared := make([]string, 0)
	for _, name := range a.concepts {
		if _, ok := c.conceptSet[name]; ok {
			shared = append(shared, name)
		}
	}
	return shared
}

// Build scores every unordered pair and returns the resulting graph.
// Edges are emitted in canonical order: by the input position of the
// source, then of the target. An empty input yields an empty graph.
func (b *Builder) Build(ctx context.Context, docs []document.Document) (*Graph, error) {
	docs = uniqueDocuments(docs)

	g := &Graph{
		Nodes: make([]Node, 0, len(docs)),
		Edges: make([]Edge, 0),
	}
	profiles := make([]profile, len(docs))
	for i, d := range docs {
		g.Nodes = append(g.Nodes, nodeFromDocument(d))
		profiles[i] = newProfile(d)
	}

	rows := make([][]Edge, len(docs))
	scoreRow := func(i int) {
		for j := i + 1; j < len(docs); j++ {
			sim := b.score(profiles[i], profiles[j])
			if sim < b.settings.MinSimilarity {
				continue
			}
			rows[i] = append(rows[i], Edge{
				Source:     docs[i].ID,
				Target:     docs[j].ID,
				Similarity: sim,
				Concepts:   sharedConcepts(profiles[i], profiles[j]),
			})
		}
	}

	if b.settings.Workers <= 1 || len(docs) < parallelThreshold {
		for i := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scoreRow(i)
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(b.settings.Workers)
		for i := range docs {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				scoreRow(i)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("failed to score document pairs: %w", err)
		}
	}

	for _, row := range rows {
		g.Edges = append(g.Edges, row...)
	}
	g.Index()

	slog.Debug("Similarity graph built",
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"pairs", len(docs)*(len(docs)-1)/2,
		"workers", b.settings.Workers)

	return g, nil
}

// uniqueDocuments drops documents whose ID was already seen
func uniqueDocuments(docs []document.Document) []document.Document {
	seen := make(map[string]bool, len(docs))
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if seen[d.ID] {
			slog.Warn("Skipping duplicate document", "id", d.ID)
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

func intersectCount(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
