package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// pathRow is a row of the paths table
type pathRow struct {
	Source string
	Target string
	Body   string
}

// Scan implements Scannable interface for pathRow
func (p *pathRow) Scan(rows *sql.Rows) error {
	return rows.Scan(&p.Source, &p.Target, &p.Body)
}

// SaveTransitionMaps replaces every stored transition map
func (s *Store) SaveTransitionMaps(ctx context.Context, maps map[string]graph.TransitionMap) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transition_maps"); err != nil {
			return fmt.Errorf("failed to clear transition maps: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO transition_maps (node_id, body) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare map insert: %w", err)
		}
		defer stmt.Close()

		for id, m := range maps {
			if m.Transitions == nil {
				m.Transitions = []graph.TransitionEntry{}
			}
			body, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to encode map %s: %w", id, err)
			}
			if _, err := stmt.ExecContext(ctx, id, string(body)); err != nil {
				return fmt.Errorf("failed to insert map %s: %w", id, err)
			}
		}
		return setMeta(ctx, tx, MetaKeyDerivedAt, time.Now().UTC().Format(time.RFC3339Nano))
	})
}

// LoadTransitionMap returns the map of a single node
func (s *Store) LoadTransitionMap(ctx context.Context, nodeID string) (*graph.TransitionMap, error) {
	var body string
	err := s.conn.QueryRowContext(ctx, "SELECT body FROM transition_maps WHERE node_id = ?", nodeID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrMapNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transition map: %w", err)
	}

	var m graph.TransitionMap
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("failed to decode transition map %s: %w", nodeID, err)
	}
	if m.Transitions == nil {
		m.Transitions = []graph.TransitionEntry{}
	}
	return &m, nil
}

// SavePaths replaces every stored path. Sources without targets are kept.
func (s *Store) SavePaths(ctx context.Context, paths graph.Paths) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM paths"); err != nil {
			return fmt.Errorf("failed to clear paths: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM path_sources"); err != nil {
			return fmt.Errorf("failed to clear path sources: %w", err)
		}

		srcStmt, err := tx.PrepareContext(ctx, "INSERT INTO path_sources (source) VALUES (?)")
		if err != nil {
			return fmt.Errorf("failed to prepare source insert: %w", err)
		}
		defer srcStmt.Close()

		pathStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO paths (source, target, length, body) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare path insert: %w", err)
		}
		defer pathStmt.Close()

		for src, targets := range paths {
			if _, err := srcStmt.ExecContext(ctx, src); err != nil {
				return fmt.Errorf("failed to insert path source %s: %w", src, err)
			}
			for dst, res := range targets {
				body, err := json.Marshal(res)
				if err != nil {
					return fmt.Errorf("failed to encode path %s -> %s: %w", src, dst, err)
				}
				if _, err := pathStmt.ExecContext(ctx, src, dst, res.Length, string(body)); err != nil {
					return fmt.Errorf("failed to insert path %s -> %s: %w", src, dst, err)
				}
			}
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if err := setMeta(ctx, tx, MetaKeyPathsSavedAt, now); err != nil {
			return err
		}
		return setMeta(ctx, tx, MetaKeyDerivedAt, now)
	})
}

// LoadPaths returns every stored path, or ErrPathsNotFound before the
// first SavePaths.
func (s *Store) LoadPaths(ctx context.Context) (graph.Paths, error) {
	if _, ok, err := s.GetMeta(ctx, MetaKeyPathsSavedAt); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrPathsNotFound
	}

	srcRows, err := s.conn.QueryContext(ctx, "SELECT source FROM path_sources")
	if err != nil {
		return nil, fmt.Errorf("failed to query path sources: %w", err)
	}
	paths := make(graph.Paths)
	for srcRows.Next() {
		var src string
		if err := srcRows.Scan(&src); err != nil {
			srcRows.Close()
			return nil, fmt.Errorf("failed to scan path source: %w", err)
		}
		paths[src] = make(map[string]graph.PathResult)
	}
	srcRows.Close()
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating path sources: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT source, target, body FROM paths")
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	found, err := scanRows[pathRow](rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for _, p := range found {
		var res graph.PathResult
		if err := json.Unmarshal([]byte(p.Body), &res); err != nil {
			return nil, fmt.Errorf("failed to decode path %s -> %s: %w", p.Source, p.Target, err)
		}
		paths[p.Source][p.Target] = res
	}
	return paths, nil
}
