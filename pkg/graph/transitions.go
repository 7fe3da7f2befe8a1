package graph

import (
	"fmt"

	"github.com/wouteroostervld/contextmesh/pkg/document"
)

// TransitionType distinguishes direct neighbours from two-hop suggestions
type TransitionType string

const (
	TransitionDirect TransitionType = "direct"
	TransitionTwoHop TransitionType = "two_hop"
)

// Via describes the intermediate node of a two-hop transition
type Via struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Type       document.Type `json:"type"`
	Similarity float64       `json:"similarity"`
	Concepts   []string      `json:"concepts"`
}

// TransitionEntry is a suggested move from a source node to a related node
type TransitionEntry struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Type           document.Type  `json:"type"`
	Similarity     float64        `json:"similarity"`
	TransitionType TransitionType `json:"transition_type"`
	Via            *Via           `json:"via,omitempty"`
	Concepts       []string       `json:"concepts"`
	Path           []string       `json:"path"`
}

// TransitionMap lists the transitions available from one node.
// Direct entries always precede two-hop entries.
type TransitionMap struct {
	Source      NodeRef           `json:"source"`
	Transitions []TransitionEntry `json:"transitions"`
}

// Direct returns the direct entries of the map
func (m TransitionMap) Direct() []TransitionEntry {
	var out []TransitionEntry
	for _, t := range m.Transitions {
		if t.TransitionType == TransitionDirect {
			out = append(out, t)
		}
	}
	return out
}

// Transitions builds the transition map of a single node
func Transitions(g *Graph, sourceID string, s Settings) (TransitionMap, error) {
	s.Validate()

	source, ok := g.Node(sourceID)
	if !ok {
		return TransitionMap{}, fmt.Errorf("%w: %s", ErrNodeNotFound, sourceID)
	}

	direct := make([]TransitionEntry, 0, g.Degree(sourceID))
	for _, e := range g.EdgesOf(sourceID) {
		target, _ := g.Node(e.Other(sourceID))
		direct = append(direct, TransitionEntry{
			ID:             target.ID,
			Title:          target.Title,
			Type:           target.Type,
			Similarity:     e.Similarity,
			TransitionType: TransitionDirect,
			Concepts:       cloneStrings(e.Concepts),
			Path:           []string{sourceID, target.ID},
		})
	}
	SortStable(direct, func(a, b TransitionEntry) int {
		return descending(a.Similarity, b.Similarity)
	})

	directIDs := make(map[string]struct{}, len(direct))
	for _, d := range direct {
		directIDs[d.ID] = struct{}{}
	}

	var twoHop []TransitionEntry
	for _, mid := range direct {
		for _, e := range g.EdgesOf(mid.ID) {
			targetID := e.Other(mid.ID)
			if targetID == sourceID {
				continue
			}
			if _, isDirect := directIDs[targetID]; isDirect {
				continue
			}

			target, _ := g.Node(targetID)
			twoHop = append(twoHop, TransitionEntry{
				ID:             target.ID,
				Title:          target.Title,
				Type:           target.Type,
				Similarity:     s.DirectWeight*mid.Similarity + s.HopWeight*e.Similarity,
				TransitionType: TransitionTwoHop,
				Via: &Via{
					ID:         mid.ID,
					Title:      mid.Title,
					Type:       mid.Type,
					Similarity: mid.Similarity,
					Concepts:   cloneStrings(mid.Concepts),
				},
				Concepts: unionStrings(mid.Concepts, e.Concepts),
				Path:     []string{sourceID, mid.ID, target.ID},
			})
		}
	}
	SortStable(twoHop, func(a, b TransitionEntry) int {
		return descending(a.Similarity, b.Similarity)
	})
	twoHop = DedupeFirst(twoHop, func(t TransitionEntry) string { return t.ID })

	return TransitionMap{
		Source:      source.Ref(),
		Transitions: append(direct, twoHop...),
	}, nil
}

// TransitionMaps builds the transition map of every node, keyed by node ID
func TransitionMaps(g *Graph, s Settings) map[string]TransitionMap {
	maps := make(map[string]TransitionMap, len(g.Nodes))
	for _, n := range g.Nodes {
		m, err := Transitions(g, n.ID, s)
		if err != nil {
			continue
		}
		maps[n.ID] = m
	}
	return maps
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// unionStrings concatenates a and b, dropping repeated values
func unionStrings(a, b []string) []string {
	return DedupeFirst(append(cloneStrings(a), b...), func(s string) string { return s })
}
