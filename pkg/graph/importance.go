package graph

import (
	"math"
	"strings"
)

// Ranked is a node with its importance score
type Ranked struct {
	ID          string  `json:"id"`
	Importance  float64 `json:"importance"`
	Connections int     `json:"connections"`
}

// Rank scores every node by connectivity and type and returns them
// from most to least important. Equal scores are ordered by node ID.
func Rank(g *Graph, s Settings) []Ranked {
	s.Validate()

	ranked := make([]Ranked, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		connections := g.Degree(n.ID)
		ranked = append(ranked, Ranked{
			ID:          n.ID,
			Importance:  s.ConnectionWeight*float64(connections) + s.TypePriorityWeight*s.TypePriority[n.Type],
			Connections: connections,
		})
	}

	SortStable(ranked, func(a, b Ranked) int {
		if c := descending(a.Importance, b.Importance); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ranked
}

// ImportantCount is the size of the important subset for a graph of n nodes
func ImportantCount(n int, s Settings) int {
	s.Validate()
	count := max(s.MinImportant, int(math.Ceil(s.ImportantFraction*float64(n)-1e-9)))
	return min(count, n)
}

// ImportantNodes returns the IDs of the nodes that take part in global path search
func ImportantNodes(g *Graph, s Settings) []string {
	top := TopN(Rank(g, s), ImportantCount(len(g.Nodes), s))
	ids := make([]string, 0, len(top))
	for _, r := range top {
		ids = append(ids, r.ID)
	}
	return ids
}
