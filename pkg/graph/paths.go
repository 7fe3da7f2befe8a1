package graph

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PathResult is a shortest path between two important nodes
type PathResult struct {
	Path     []NodeRef `json:"path"`
	Length   int       `json:"length"`
	Concepts []string  `json:"concepts"`
}

// Paths maps source ID to target ID to the shortest path between them.
// Pairs without a path within the hop limit are absent.
type Paths map[string]map[string]PathResult

// Count returns the number of stored paths
func (p Paths) Count() int {
	n := 0
	for _, targets := range p {
		n += len(targets)
	}
	return n
}

// PathEngine runs bounded Dijkstra searches over a graph where each edge
// weighs 1 - similarity.
type PathEngine struct {
	g        *Graph
	settings Settings
}

// NewPathEngine creates a path engine over an indexed graph
func NewPathEngine(g *Graph, settings Settings) *PathEngine {
	settings.Validate()
	g.ensureIndex()
	return &PathEngine{g: g, settings: settings}
}

// searchTree is the result of a single-source search
type searchTree struct {
	source string
	dist   map[string]float64
	prev   map[string]string
}

type queueItem struct {
	id   string
	dist float64
}

type queue []queueItem

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].id < q[j].id
}
func (q queue) Swap(i, j int)  { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)    { *q = append(*q, x.(queueItem)) }
func (q *queue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

func (e *PathEngine) search(source string) searchTree {
	t := searchTree{
		source: source,
		dist:   map[string]float64{source: 0},
		prev:   make(map[string]string),
	}
	visited := make(map[string]bool)

	q := &queue{{id: source}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(queueItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		for _, edge := range e.g.EdgesOf(cur.id) {
			next := edge.Other(cur.id)
			if visited[next] {
				continue
			}
			d := cur.dist + (1 - edge.Similarity)
			if old, ok := t.dist[next]; !ok || d < old {
				t.dist[next] = d
				t.prev[next] = cur.id
				heap.Push(q, queueItem{id: next, dist: d})
			}
		}
	}
	return t
}

// route walks the predecessor chain back from target
func (t searchTree) route(target string) []string {
	if _, ok := t.dist[target]; !ok {
		return nil
	}
	var ids []string
	for at := target; ; at = t.prev[at] {
		ids = append(ids, at)
		if at == t.source {
			break
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// result turns a route into a PathResult, or reports false when it is
// missing or longer than the hop limit.
func (e *PathEngine) result(ids []string) (PathResult, bool) {
	if len(ids) < 2 || len(ids)-1 > e.settings.MaxPathLength {
		return PathResult{}, false
	}

	refs := make([]NodeRef, 0, len(ids))
	for _, id := range ids {
		n, _ := e.g.Node(id)
		refs = append(refs, n.Ref())
	}
	return PathResult{
		Path:     refs,
		Length:   len(ids) - 1,
		Concepts: e.conceptTrail(ids),
	}, true
}

// conceptTrail counts edge concepts along the route and orders them by
// frequency, then by first appearance.
func (e *PathEngine) conceptTrail(ids []string) []string {
	counts := make(map[string]int)
	var order []string
	for i := 0; i+1 < len(ids); i++ {
		edge, ok := e.g.EdgeBetween(ids[i], ids[i+1])
		if !ok {
			continue
		}
		for _, c := range edge.Concepts {
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}
	trail := make([]string, 0, len(order))
	trail = append(trail, order...)
	SortStable(trail, func(a, b string) int { return counts[b] - counts[a] })
	return trail
}

// ShortestPath returns the minimum-weight path from source to target.
// ok is false when no path exists within MaxPathLength hops.
func (e *PathEngine) ShortestPath(source, target string) (PathResult, bool, error) {
	if _, found := e.g.Node(source); !found {
		return PathResult{}, false, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	if _, found := e.g.Node(target); !found {
		return PathResult{}, false, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}
	if source == target {
		return PathResult{}, false, nil
	}
	res, ok := e.result(e.search(source).route(target))
	return res, ok, nil
}

// Weight returns the summed edge weight of a route, or false if two
// consecutive nodes are not joined by an edge.
func (e *PathEngine) Weight(ids []string) (float64, bool) {
	total := 0.0
	for i := 0; i+1 < len(ids); i++ {
		edge, ok := e.g.EdgeBetween(ids[i], ids[i+1])
		if !ok {
			return 0, false
		}
		total += 1 - edge.Similarity
	}
	return total, true
}

// AllPairs computes paths between every ordered pair of the given nodes.
// One search is run per source and reused for all its targets. Every
// source gets an entry, which may be empty.
func (e *PathEngine) AllPairs(ctx context.Context, important []string) (Paths, error) {
	for _, id := range important {
		if _, ok := e.g.Node(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}

	paths := make(Paths, len(important))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.settings.Workers)
	for _, src := range important {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			tree := e.search(src)
			targets := make(map[string]PathResult)
			for _, dst := range important {
				if dst == src {
					continue
				}
				if res, ok := e.result(tree.route(dst)); ok {
					targets[dst] = res
				}
			}

			mu.Lock()
			paths[src] = targets
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute shortest paths: %w", err)
	}

	slog.Debug("Shortest paths computed",
		"sources", len(important),
		"paths", paths.Count(),
		"max_hops", e.settings.MaxPathLength)

	return paths, nil
}

// String renders a path as "a -> b -> c"
func (r PathResult) String() string {
	ids := make([]string, 0, len(r.Path))
	for _, n := range r.Path {
		ids = append(ids, n.ID)
	}
	return strings.Join(ids, " -> ")
}
