package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// conceptVector returns the L2-normalised concept counts of d, one
// dimension per vocabulary term. ok is false for documents without any
// vocabulary concept.
func conceptVector(index map[string]int, d document.Document) ([]float32, bool) {
	vec := make([]float32, len(index))
	var norm float64
	for _, c := range d.Concepts {
		i, known := index[c.Name]
		if !known || c.Importance <= 0 {
			continue
		}
		vec[i] += float32(c.Importance)
	}
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, false
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, true
}

// IndexConcepts replaces the stored concept vectors for the nodes of the
// current graph. Documents that are not graph nodes are ignored.
func (s *Store) IndexConcepts(ctx context.Context, vocabulary []string, docs []document.Document) error {
	if len(vocabulary) == 0 {
		return fmt.Errorf("vocabulary cannot be empty")
	}
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		if _, dup := index[term]; !dup {
			index[term] = i
		}
	}
	dim := len(vocabulary)

	positions, err := s.nodePositions(ctx)
	if err != nil {
		return err
	}

	indexed := 0
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM concept_vectors"); err != nil {
			return fmt.Errorf("failed to clear concept vectors: %w", err)
		}
		if !s.skipVecTable {
			if _, err := tx.ExecContext(ctx, DropVecConceptsTable); err != nil {
				return fmt.Errorf("failed to drop vec_concepts: %w", err)
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(CreateVecConceptsTableTemplate, dim)); err != nil {
				return fmt.Errorf("failed to create vec_concepts: %w", err)
			}
		}

		seen := make(map[string]bool, len(docs))
		for _, d := range docs {
			pos, isNode := positions[d.ID]
			if !isNode || seen[d.ID] {
				continue
			}
			seen[d.ID] = true

			vec, ok := conceptVector(index, d)
			if !ok {
				continue
			}
			blob, err := sqlite_vec.SerializeFloat32(vec)
			if err != nil {
				return fmt.Errorf("failed to serialize vector for %s: %w", d.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO concept_vectors (node_id, vector) VALUES (?, ?)", d.ID, blob); err != nil {
				return fmt.Errorf("failed to insert vector for %s: %w", d.ID, err)
			}
			if !s.skipVecTable {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO vec_concepts (node_position, embedding) VALUES (?, ?)", pos, blob); err != nil {
					return fmt.Errorf("failed to index vector for %s: %w", d.ID, err)
				}
			}
			indexed++
		}
		return setMeta(ctx, tx, MetaKeyConceptDim, itoa(dim))
	})
	if err != nil {
		return err
	}

	slog.Debug("Concept vectors indexed", "nodes", indexed, "dimension", dim, "vec_table", !s.skipVecTable)
	return nil
}

// Nearest returns up to k nodes whose concept vectors are closest to the
// vector of nodeID. Nodes without a vector have no neighbours.
func (s *Store) Nearest(ctx context.Context, nodeID string, k int) ([]store.Neighbor, error) {
	if k <= 0 {
		return []store.Neighbor{}, nil
	}

	var blob []byte
	err := s.conn.QueryRowContext(ctx, "SELECT vector FROM concept_vectors WHERE node_id = ?", nodeID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		var exists int
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE id = ?", nodeID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to look up node: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}
		return []store.Neighbor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load concept vector: %w", err)
	}

	if s.skipVecTable {
		return s.nearestScan(ctx, nodeID, blob, k)
	}
	return s.nearestVec(ctx, nodeID, blob, k)
}

// nearestVec asks sqlite-vec for k+1 matches since the query node itself
// is always among them.
func (s *Store) nearestVec(ctx context.Context, nodeID string, blob []byte, k int) ([]store.Neighbor, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT n.id, v.distance
		FROM vec_concepts v
		JOIN nodes n ON n.position = v.node_position
		WHERE v.embedding MATCH ?
		  AND k = ?
		ORDER BY v.distance`, blob, k+1)
	if err != nil {
		return nil, fmt.Errorf("failed to search concept vectors: %w", err)
	}
	defer rows.Close()

	neighbors := make([]store.Neighbor, 0, k)
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		if n.ID == nodeID || len(neighbors) == k {
			continue
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighbors: %w", err)
	}
	return neighbors, nil
}

// nearestScan computes cosine distances in Go over every stored vector
func (s *Store) nearestScan(ctx context.Context, nodeID string, blob []byte, k int) ([]store.Neighbor, error) {
	query, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT c.node_id, c.vector
		FROM concept_vectors c
		JOIN nodes n ON n.id = c.node_id
		ORDER BY n.position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query concept vectors: %w", err)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan concept vector: %w", err)
		}
		if id == nodeID {
			continue
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt vector for %s: %w", id, err)
		}
		neighbors = append(neighbors, store.Neighbor{ID: id, Distance: cosineDistance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concept vectors: %w", err)
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	if neighbors == nil {
		neighbors = []store.Neighbor{}
	}
	return neighbors, nil
}

// decodeVector reads the little-endian float32 layout written by
// SerializeFloat32
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (s *Store) nodePositions(ctx context.Context) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT id, position FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("failed to query node positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]int)
	for rows.Next() {
		var id string
		var pos int
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, fmt.Errorf("failed to scan node position: %w", err)
		}
		positions[id] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node positions: %w", err)
	}
	return positions, nil
}
