package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// nodeRow is a row of the nodes table
type nodeRow struct {
	ID      string
	Title   string
	Type    string
	Summary string
}

// Scan implements Scannable interface for nodeRow
func (n *nodeRow) Scan(rows *sql.Rows) error {
	return rows.Scan(&n.ID, &n.Title, &n.Type, &n.Summary)
}

// edgeRow is a row of the edges table
type edgeRow struct {
	Source     string
	Target     string
	Similarity float64
	Concepts   string
}

// Scan implements Scannable interface for edgeRow
func (e *edgeRow) Scan(rows *sql.Rows) error {
	return rows.Scan(&e.Source, &e.Target, &e.Similarity, &e.Concepts)
}

// SaveGraph replaces the stored graph. Derived artifacts and concept
// vectors from a previous run are cleared.
func (s *Store) SaveGraph(ctx context.Context, g *graph.Graph) error {
	if g == nil {
		g = &graph.Graph{}
	}
	runID := store.NewRunID()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM paths",
			"DELETE FROM path_sources",
			"DELETE FROM transition_maps",
			"DELETE FROM concept_vectors",
			"DELETE FROM edges",
			"DELETE FROM nodes",
			"DELETE FROM meta WHERE key IN ('" + MetaKeyDerivedAt + "', '" + MetaKeyPathsSavedAt + "')",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear previous graph: %w", err)
			}
		}

		nodeStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO nodes (id, position, title, type, summary) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare node insert: %w", err)
		}
		defer nodeStmt.Close()

		for i, n := range g.Nodes {
			if _, err := nodeStmt.ExecContext(ctx, n.ID, i, n.Title, string(n.Type), n.Summary); err != nil {
				return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO edges (position, source, target, similarity, concepts) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare edge insert: %w", err)
		}
		defer edgeStmt.Close()

		for i, e := range g.Edges {
			concepts := e.Concepts
			if concepts == nil {
				concepts = []string{}
			}
			body, err := json.Marshal(concepts)
			if err != nil {
				return fmt.Errorf("failed to encode concepts: %w", err)
			}
			if _, err := edgeStmt.ExecContext(ctx, i, e.Source, e.Target, e.Similarity, string(body)); err != nil {
				return fmt.Errorf("failed to insert edge %s -> %s: %w", e.Source, e.Target, err)
			}
		}

		if err := setMeta(ctx, tx, MetaKeyRunID, runID); err != nil {
			return err
		}
		return setMeta(ctx, tx, MetaKeyGraphSavedAt, time.Now().UTC().Format(time.RFC3339Nano))
	})
	if err != nil {
		return err
	}

	if !s.skipVecTable {
		if _, err := s.conn.ExecContext(ctx, DropVecConceptsTable); err != nil {
			slog.Warn("Failed to drop concept vector index", "error", err)
		}
	}

	slog.Debug("Graph saved", "path", s.path, "run_id", runID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

// LoadGraph reads the graph back in the order it was saved
func (s *Store) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	if _, ok, err := s.GetMeta(ctx, MetaKeyGraphSavedAt); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrGraphNotFound
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT id, title, type, summary FROM nodes ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	nodes, err := scanRows[nodeRow](rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	rows, err = s.conn.QueryContext(ctx, "SELECT source, target, similarity, concepts FROM edges ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	edges, err := scanRows[edgeRow](rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	g := &graph.Graph{
		Nodes: make([]graph.Node, 0, len(nodes)),
		Edges: make([]graph.Edge, 0, len(edges)),
	}
	for _, n := range nodes {
		g.Nodes = append(g.Nodes, graph.Node{ID: n.ID, Title: n.Title, Type: document.Type(n.Type), Summary: n.Summary})
	}
	for _, e := range edges {
		concepts := []string{}
		if err := json.Unmarshal([]byte(e.Concepts), &concepts); err != nil {
			return nil, fmt.Errorf("failed to decode concepts of %s -> %s: %w", e.Source, e.Target, err)
		}
		g.Edges = append(g.Edges, graph.Edge{Source: e.Source, Target: e.Target, Similarity: e.Similarity, Concepts: concepts})
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.Index()
	return g, nil
}
