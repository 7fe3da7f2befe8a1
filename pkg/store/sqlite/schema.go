package sqlite

// Schema version for migration tracking
const SchemaVersion = "1.0.0"

// DDL statements for database initialization
const (
	// Meta table stores run information and version info
	CreateMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	// Nodes keep their input position so the graph reloads in the same order
	CreateNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    position INTEGER UNIQUE NOT NULL,
    title TEXT NOT NULL,
    type TEXT NOT NULL,
    summary TEXT NOT NULL
);`

	// Edges are stored in canonical order; concepts is a JSON array
	CreateEdgesTable = `
CREATE TABLE IF NOT EXISTS edges (
    position INTEGER PRIMARY KEY,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    similarity REAL NOT NULL,
    concepts TEXT NOT NULL,
    UNIQUE(source, target),
    FOREIGN KEY(source) REFERENCES nodes(id) ON DELETE CASCADE,
    FOREIGN KEY(target) REFERENCES nodes(id) ON DELETE CASCADE
);`

	CreateEdgesSourceIndex = `
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);`

	CreateEdgesTargetIndex = `
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);`

	// One JSON document per node
	CreateTransitionMapsTable = `
CREATE TABLE IF NOT EXISTS transition_maps (
    node_id TEXT PRIMARY KEY,
    body TEXT NOT NULL
);`

	// Sources are tracked separately so sources without reachable targets survive a reload
	CreatePathSourcesTable = `
CREATE TABLE IF NOT EXISTS path_sources (
    source TEXT PRIMARY KEY
);`

	CreatePathsTable = `
CREATE TABLE IF NOT EXISTS paths (
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    length INTEGER NOT NULL,
    body TEXT NOT NULL,
    PRIMARY KEY (source, target),
    FOREIGN KEY(source) REFERENCES path_sources(source) ON DELETE CASCADE
);`

	// Serialized concept vectors, kept outside vec0 so lookups work without the extension
	CreateConceptVectorsTable = `
CREATE TABLE IF NOT EXISTS concept_vectors (
    node_id TEXT PRIMARY KEY,
    vector BLOB NOT NULL
);`

	// Vec_concepts virtual table for nearest-neighbour lookups.
	// Dimension is the vocabulary size and is fixed at creation time.
	CreateVecConceptsTableTemplate = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_concepts USING vec0(
    node_position INTEGER PRIMARY KEY,
    embedding FLOAT[%d] distance_metric=cosine
);`

	DropVecConceptsTable = `DROP TABLE IF EXISTS vec_concepts;`

	// Enable WAL mode for concurrent reads/writes
	EnableWALMode = `PRAGMA journal_mode=WAL;`

	// Set reasonable WAL checkpoint parameters
	SetWALCheckpoint = `PRAGMA wal_autocheckpoint=1000;`

	// Enable foreign key constraints
	EnableForeignKeys = `PRAGMA foreign_keys=ON;`
)

// MetaKeys are standard keys stored in the meta table
const (
	MetaKeySchemaVersion = "schema_version"
	MetaKeyCreatedAt     = "created_at"
	MetaKeyRunID         = "run_id"
	MetaKeyGraphSavedAt  = "graph_saved_at"
	MetaKeyDerivedAt     = "derived_at"
	MetaKeyPathsSavedAt  = "paths_saved_at"
	MetaKeyConceptDim    = "concept_dimension"
)
