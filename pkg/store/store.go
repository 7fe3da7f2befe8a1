// Package store defines the GraphStore boundary between pipeline stages.
// Stage 1 persists the similarity graph; Stage 2 reloads it and persists
// the derived transition maps and paths.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
)

// Sentinel errors
var (
	// ErrGraphNotFound means no graph was ever persisted. An empty graph is
	// not an error.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrMapNotFound means no transition map exists for the requested node.
	ErrMapNotFound = errors.New("transition map not found")

	// ErrPathsNotFound means Stage 2 has not persisted paths yet.
	ErrPathsNotFound = errors.New("paths not found")
)

// GraphStore persists the graph and its derived artifacts
type GraphStore interface {
	SaveGraph(ctx context.Context, g *graph.Graph) error
	// LoadGraph returns ErrGraphNotFound when no graph was saved. The
	// returned graph is validated and indexed.
	LoadGraph(ctx context.Context) (*graph.Graph, error)

	// SaveTransitionMaps replaces every stored map.
	SaveTransitionMaps(ctx context.Context, maps map[string]graph.TransitionMap) error
	LoadTransitionMap(ctx context.Context, nodeID string) (*graph.TransitionMap, error)

	SavePaths(ctx context.Context, paths graph.Paths) error
	LoadPaths(ctx context.Context) (graph.Paths, error)

	Metadata(ctx context.Context) (Metadata, error)
	Close() error
}

// ConceptIndex is implemented by stores that can answer nearest-neighbour
// queries over document concept vectors.
type ConceptIndex interface {
	// IndexConcepts replaces the stored vectors. Each document becomes a
	// vector with one dimension per vocabulary term.
	IndexConcepts(ctx context.Context, vocabulary []string, docs []document.Document) error
	// Nearest returns up to k nodes closest to nodeID, nearest first.
	Nearest(ctx context.Context, nodeID string, k int) ([]Neighbor, error)
}

// Neighbor is a node and its cosine distance from a query node
type Neighbor struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Metadata describes the artifacts currently held by a store
type Metadata struct {
	SchemaVersion  string    `json:"schema_version"`
	RunID          string    `json:"run_id,omitempty"`
	GraphSavedAt   time.Time `json:"graph_saved_at"`
	DerivedAt      time.Time `json:"derived_at"`
	Nodes          int       `json:"nodes"`
	Edges          int       `json:"edges"`
	TransitionMaps int       `json:"transition_maps"`
	Paths          int       `json:"paths"`
}

// NewRunID identifies one Stage 1 run
func NewRunID() string {
	return uuid.NewString()
}

var keyReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeKey turns a node ID into a file-safe storage key
func SanitizeKey(id string) string {
	return keyReplacer.Replace(id)
}
