package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

// weightedGraph builds a graph from hand-written edges. Nodes are created
// in the order they first appear.
func weightedGraph(edges []Edge, isolated ...string) *Graph {
	g := &Graph{Edges: edges}
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			g.Nodes = append(g.Nodes, Node{ID: id, Title: "Title " + id, Type: document.TypeOther})
		}
	}
	for _, e := range edges {
		add(e.Source)
		add(e.Target)
	}
	for _, id := range isolated {
		add(id)
	}
	g.Index()
	return g
}

func TestTransitionsDirectAndTwoHop(t *testing.T) {
	g := weightedGraph([]Edge{
		{Source: "A", Target: "B", Similarity: 0.8, Concepts: []string{"api"}},
		{Source: "A", Target: "C", Similarity: 0.6, Concepts: []string{"cache"}},
		{Source: "B", Target: "C", Similarity: 0.4, Concepts: []string{"api"}},
		{Source: "B", Target: "D", Similarity: 0.5, Concepts: []string{"api", "auth"}},
		{Source: "C", Target: "D", Similarity: 0.9, Concepts: []string{"cache", "queue"}},
	})

	m, err := Transitions(g, "A", DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, NodeRef{ID: "A", Title: "Title A", Type: document.TypeOther}, m.Source)
	require.Len(t, m.Transitions, 3)

	b, c, d := m.Transitions[0], m.Transitions[1], m.Transitions[2]
	assert.Equal(t, "B", b.ID)
	assert.Equal(t, TransitionDirect, b.TransitionType)
	assert.Nil(t, b.Via)
	assert.Equal(t, []string{"A", "B"}, b.Path)

	assert.Equal(t, "C", c.ID)
	assert.Equal(t, TransitionDirect, c.TransitionType)

	// via B: 0.7*0.8 + 0.3*0.5 beats via C: 0.7*0.6 + 0.3*0.9
	assert.Equal(t, "D", d.ID)
	assert.Equal(t, TransitionTwoHop, d.TransitionType)
	assert.InDelta(t, 0.71, d.Similarity, 1e-9)
	require.NotNil(t, d.Via)
	assert.Equal(t, "B", d.Via.ID)
	assert.InDelta(t, 0.8, d.Via.Similarity, 1e-9)
	assert.Equal(t, []string{"api", "auth"}, d.Concepts)
	assert.Equal(t, []string{"A", "B", "D"}, d.Path)

	assert.Len(t, m.Direct(), 2)
}

func TestTransitionsUnknownSource(t *testing.T) {
	g := weightedGraph(nil, "A")
	_, err := Transitions(g, "missing", DefaultSettings())
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestTransitionsIsolatedNode(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "lonely", Type: document.TypeRule},
			{ID: "x", Type: document.TypeSource},
			{ID: "y", Type: document.TypeSource},
		},
		Edges: []Edge{{Source: "x", Target: "y", Similarity: 0.4}},
	}

	m, err := Transitions(g, "lonely", DefaultSettings())
	require.NoError(t, err)
	assert.NotNil(t, m.Transitions)
	assert.Empty(t, m.Transitions)

	for _, r := range Rank(g, DefaultSettings()) {
		if r.ID == "lonely" {
			assert.Equal(t, 0, r.Connections)
			assert.InDelta(t, DefaultTypePriorityWeight*3, r.Importance, 1e-9)
		}
	}
}

func TestTransitionMapsProperties(t *testing.T) {
	g, err := NewBuilder(DefaultSettings()).Build(context.Background(), syntheticDocs(60))
	require.NoError(t, err)

	maps := TransitionMaps(g, DefaultSettings())
	require.Len(t, maps, len(g.Nodes))

	for id, m := range maps {
		assert.Equal(t, id, m.Source.ID)

		direct := make(map[string]bool)
		twoHop := make(map[string]bool)
		seenTwoHop := false
		for _, tr := range m.Transitions {
			switch tr.TransitionType {
			case TransitionDirect:
				assert.False(t, seenTwoHop, "%s: direct entry after a two-hop entry", id)
				direct[tr.ID] = true
				_, ok := g.EdgeBetween(id, tr.ID)
				assert.True(t, ok)
			case TransitionTwoHop:
				seenTwoHop = true
				assert.NotEqual(t, id, tr.ID)
				assert.False(t, direct[tr.ID], "%s: two-hop target %s is a direct neighbour", id, tr.ID)
				assert.False(t, twoHop[tr.ID], "%s: duplicate two-hop target %s", id, tr.ID)
				twoHop[tr.ID] = true
				require.NotNil(t, tr.Via)
				assert.True(t, direct[tr.Via.ID])
				_, ok := g.EdgeBetween(tr.Via.ID, tr.ID)
				assert.True(t, ok)
			default:
				t.Fatalf("unexpected transition type %q", tr.TransitionType)
			}
			assert.GreaterOrEqual(t, tr.Similarity, 0.0)
			assert.LessOrEqual(t, tr.Similarity, 1.0)
		}
		assert.Equal(t, g.Degree(id), len(direct))
	}
}

func TestTransitionMapsEmptyGraph(t *testing.T) {
	maps := TransitionMaps(&Graph{}, DefaultSettings())
	assert.Empty(t, maps)
}

func TestRankOrderAndImportantCount(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "b", Type: document.TypeSource},
			{ID: "a", Type: document.TypeSource},
			{ID: "r", Type: document.TypeRule},
			{ID: "hub", Type: document.TypeOther},
		},
		Edges: []Edge{
			{Source: "hub", Target: "a", Similarity: 0.5},
			{Source: "hub", Target: "b", Similarity: 0.5},
			{Source: "hub", Target: "r", Similarity: 0.5},
		},
	}

	ranked := Rank(g, DefaultSettings())
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.ID)
	}
	// hub 2.1, r 1.6, a and b tie at 1.0
	assert.Equal(t, []string{"hub", "r", "a", "b"}, ids)

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{3, 3},
		{6, 5},
		{25, 5},
		{26, 6},
		{100, 20},
		{101, 21},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ImportantCount(tt.n, DefaultSettings()), "n=%d", tt.n)
	}
}

func TestSortTopDedupe(t *testing.T) {
	type item struct {
		key   string
		score float64
	}
	items := []item{{"x", 1}, {"y", 2}, {"x", 2}, {"z", 1}}
	SortStable(items, func(a, b item) int { return descending(a.score, b.score) })
	assert.Equal(t, []item{{"y", 2}, {"x", 2}, {"x", 1}, {"z", 1}}, items)

	deduped := DedupeFirst(items, func(i item) string { return i.key })
	assert.Equal(t, []item{{"y", 2}, {"x", 2}, {"z", 1}}, deduped)

	assert.Len(t, TopN(deduped, 2), 2)
	assert.Len(t, TopN(deduped, 10), 3)
	assert.Empty(t, TopN(deduped, -1))
}
