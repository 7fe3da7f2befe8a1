package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

func newDoc(id string, typ document.Type, concepts []string, keywords []string) document.Document {
	d := document.Document{ID: id, Title: id, Type: typ, Keywords: keywords}
	for i, c := range concepts {
		d.Concepts = append(d.Concepts, document.Concept{Name: c, Importance: len(concepts) - i})
	}
	return d
}

func TestSimilarityScenario(t *testing.T) {
	docs := []document.Document{
		newDoc("A", document.TypeDocumentation, []string{"api", "auth", "cache", "queue", "state"}, nil),
		newDoc("B", document.TypeDocumentation, []string{"api", "auth", "cache", "layout", "theme"}, nil),
		newDoc("C", document.TypeSource, []string{"api", "build", "deploy", "lint", "test"}, nil),
		newDoc("D", document.TypeStyle, []string{"color"}, nil),
	}

	b := NewBuilder(DefaultSettings())
	assert.InDelta(t, 0.5, b.Similarity(docs[0], docs[1]), 0.001)
	assert.InDelta(t, 0.1, b.Similarity(docs[1], docs[2]), 0.001)

	g, err := b.Build(context.Background(), docs)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	ab, ok := g.EdgeBetween("A", "B")
	require.True(t, ok, "expected an A-B edge")
	assert.InDelta(t, 0.5, ab.Similarity, 0.001)
	assert.Equal(t, []string{"api", "auth", "cache"}, ab.Concepts)

	_, ok = g.EdgeBetween("B", "C")
	assert.False(t, ok, "B-C is below the threshold")
	assert.Equal(t, 0, g.Degree("D"))
}

func TestSimilarityThresholdIsInclusive(t *testing.T) {
	shared := []string{"c1", "c2", "c3"}
	a := newDoc("a", document.TypeRule, append(shared, "a4", "a5", "a6", "a7", "a8", "a9", "a10"), nil)
	c := newDoc("c", document.TypeSource, append(shared, "b4", "b5", "b6", "b7", "b8", "b9", "b10"), nil)

	b := NewBuilder(DefaultSettings())
	require.Equal(t, DefaultMinSimilarity, b.Similarity(a, c))

	g, err := b.Build(context.Background(), []document.Document{a, c})
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)

	s := DefaultSettings()
	s.MinSimilarity = 0.16
	g, err = NewBuilder(s).Build(context.Background(), []document.Document{a, c})
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
}

func TestSimilaritySymmetricAndBounded(t *testing.T) {
	docs := syntheticDocs(40)
	b := NewBuilder(DefaultSettings())
	for i := range docs {
		for j := range docs {
			ab := b.Similarity(docs[i], docs[j])
			ba := b.Similarity(docs[j], docs[i])
			assert.Equal(t, ab, ba, "%s/%s", docs[i].ID, docs[j].ID)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	}
}

func TestSimilarityRepeatedNames(t *testing.T) {
	a := newDoc("a", document.TypeOther, []string{"api", "api", "api"}, []string{"x", "x"})
	c := newDoc("c", document.TypeSource, []string{"api", "auth"}, []string{"x", "y"})

	b := NewBuilder(DefaultSettings())
	assert.Equal(t, b.Similarity(a, c), b.Similarity(c, a))
	// one shared of max(1,2) concepts, one shared of max(1,2) keywords
	assert.InDelta(t, 0.5*0.5+0.3*0.5, b.Similarity(a, c), 1e-9)
}

func TestBuildEmptyAndMalformed(t *testing.T) {
	b := NewBuilder(DefaultSettings())

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Edges)

	// documents without concepts or keywords still get nodes and type bonuses
	docs := []document.Document{
		{ID: "x", Type: document.TypeRule},
		{ID: "y", Type: document.TypeRule},
		{ID: "z", Type: document.TypeSource},
	}
	g, err = b.Build(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)
	assert.InDelta(t, DefaultTypeBonus, g.Edges[0].Similarity, 1e-9)
	assert.Empty(t, g.Edges[0].Concepts)
}

func TestBuildSkipsDuplicateIDs(t *testing.T) {
	docs := []document.Document{
		newDoc("a", document.TypeRule, []string{"api"}, nil),
		newDoc("a", document.TypeSource, []string{"theme"}, nil),
		newDoc("b", document.TypeRule, []string{"api"}, nil),
	}
	g, err := NewBuilder(DefaultSettings()).Build(context.Background(), docs)
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	require.Len(t, g.Nodes, 2)
	n, _ := g.Node("a")
	assert.Equal(t, document.TypeRule, n.Type)
}

func TestBuildDeterministicAcrossWorkers(t *testing.T) {
	docs := syntheticDocs(150)

	seq, err := NewBuilder(DefaultSettings()).Build(context.Background(), docs)
	require.NoError(t, err)

	s := DefaultSettings()
	s.Workers = 4
	par, err := NewBuilder(s).Build(context.Background(), docs)
	require.NoError(t, err)

	require.NotEmpty(t, seq.Edges)
	assert.Equal(t, seq.Nodes, par.Nodes)
	assert.Equal(t, seq.Edges, par.Edges)

	// canonical order: source input index, then target input index
	pos := make(map[string]int, len(docs))
	for i, d := range docs {
		pos[d.ID] = i
	}
	for i := 1; i < len(seq.Edges); i++ {
		prev, cur := seq.Edges[i-1], seq.Edges[i]
		assert.Less(t, pos[prev.Source], pos[prev.Target])
		if pos[prev.Source] == pos[cur.Source] {
			assert.Less(t, pos[prev.Target], pos[cur.Target])
		} else {
			assert.Less(t, pos[prev.Source], pos[cur.Source])
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(DefaultSettings()).Build(ctx, syntheticDocs(10))
	assert.ErrorIs(t, err, context.Canceled)
}

// syntheticDocs returns n documents with overlapping concept and keyword sets
func syntheticDocs(n int) []document.Document {
	vocab := []string{"api", "auth", "cache", "queue", "state", "theme", "layout", "build", "deploy", "test", "lint", "route"}
	words := []string{"graph", "node", "edge", "path", "score", "weight", "rank", "store"}
	types := []document.Type{document.TypeRule, document.TypeDocumentation, document.TypeSource, document.TypeComponent}

	docs := make([]document.Document, 0, n)
	for i := 0; i < n; i++ {
		var concepts, keywords []string
		for k := 0; k < 1+i%5; k++ {
			concepts = append(concepts, vocab[(i*7+k*3)%len(vocab)])
		}
		for k := 0; k < i%4; k++ {
			keywords = append(keywords, words[(i+k*5)%len(words)])
		}
		docs = append(docs, newDoc(fmt.Sprintf("doc-%03d", i), types[i%len(types)], concepts, keywords))
	}
	return docs
}
