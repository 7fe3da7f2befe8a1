// Package graph implements the context relationship graph engine: pairwise
// similarity scoring, importance ranking, transition maps and bounded
// shortest paths between important documents.
//
// # Lifecycle
//
// A Graph is produced by Builder.Build, persisted through a store, and
// reloaded before any derived artifact is computed. After Index() is called
// a Graph is treated as read-only and may be shared between goroutines.
//
// # Scaling
//
// Building compares every unordered pair of documents, so cost grows as
// O(N²·(C+K)) for N documents with C concepts and K keywords each. This is
// comfortable for hundreds to low thousands of documents; larger corpora
// need sharding or a nearest-neighbour prefilter in front of the builder.
package graph

import (
	"errors"
	"fmt"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned when an operation names a node that is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidGraph is returned by Validate for dangling, duplicate or self-referencing edges.
	ErrInvalidGraph = errors.New("invalid graph")
)

// Node is the graph projection of a document
type Node struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Type    document.Type `json:"type"`
	Summary string        `json:"summary"`
}

// Ref returns the short reference form of the node
func (n Node) Ref() NodeRef {
	return NodeRef{ID: n.ID, Title: n.Title, Type: n.Type}
}

// Edge is an undirected similarity link between two nodes
type Edge struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Similarity float64  `json:"similarity"`
	Concepts   []string `json:"concepts"`
}

// Other returns the endpoint of e that is not id
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Graph holds nodes in input order and edges in canonical order
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	nodeIdx map[string]int
	adj     map[string][]int
	pairIdx map[[2]string]int
}

// NodeRef identifies a node in derived artifacts
type NodeRef struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Type  document.Type `json:"type"`
}

func nodeFromDocument(d document.Document) Node {
	return Node{ID: d.ID, Title: d.Title, Type: d.Type, Summary: d.Summary}
}

// Index builds the lookup tables used by the read-side operations.
// It must be called before the graph is shared between goroutines.
func (g *Graph) Index() {
	g.nodeIdx = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, ok := g.nodeIdx[n.ID]; !ok {
			g.nodeIdx[n.ID] = i
		}
	}

	g.adj = make(map[string][]int, len(g.Nodes))
	g.pairIdx = make(map[[2]string]int, len(g.Edges))
	for i, e := range g.Edges {
		g.adj[e.Source] = append(g.adj[e.Source], i)
		if e.Target != e.Source {
			g.adj[e.Target] = append(g.adj[e.Target], i)
		}
		key := pairKey(e.Source, e.Target)
		if _, ok := g.pairIdx[key]; !ok {
			g.pairIdx[key] = i
		}
	}
}

func (g *Graph) ensureIndex() {
	if g.nodeIdx == nil {
		g.Index()
	}
}

// Node returns the node with the given ID
func (g *Graph) Node(id string) (Node, bool) {
	g.ensureIndex()
	i, ok := g.nodeIdx[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// EdgesOf returns the edges touching id in canonical edge order
func (g *Graph) EdgesOf(id string) []Edge {
	g.ensureIndex()
	idxs := g.adj[id]
	edges := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		edges = append(edges, g.Edges[i])
	}
	return edges
}

// Degree returns the number of edges touching id
func (g *Graph) Degree(id string) int {
	g.ensureIndex()
	return len(g.adj[id])
}

// EdgeBetween returns the edge joining a and b in either direction
func (g *Graph) EdgeBetween(a, b string) (Edge, bool) {
	g.ensureIndex()
	i, ok := g.pairIdx[pairKey(a, b)]
	if !ok {
		return Edge{}, false
	}
	return g.Edges[i], true
}

// Validate checks the structural invariants of a graph loaded from storage
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node %s", ErrInvalidGraph, n.ID)
		}
		seen[n.ID] = true
	}

	pairs := make(map[[2]string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.Source == e.Target {
			return fmt.Errorf("%w: self-edge on %s", ErrInvalidGraph, e.Source)
		}
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("%w: edge %s -> %s references unknown node", ErrInvalidGraph, e.Source, e.Target)
		}
		if e.Similarity < 0 || e.Similarity > 1 {
			return fmt.Errorf("%w: similarity %f out of range on %s -> %s", ErrInvalidGraph, e.Similarity, e.Source, e.Target)
		}
		key := pairKey(e.Source, e.Target)
		if pairs[key] {
			return fmt.Errorf("%w: duplicate edge %s -> %s", ErrInvalidGraph, e.Source, e.Target)
		}
		pairs[key] = true
	}
	return nil
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
