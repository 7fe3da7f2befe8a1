// Package sqlite is a GraphStore backed by a single SQLite database. Node
// concept vectors are additionally indexed with sqlite-vec for
// nearest-neighbour lookups.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wouteroostervld/contextmesh/pkg/store"
)

// Store wraps the SQLite connection
type Store struct {
	conn         *sql.DB
	path         string
	skipVecTable bool
}

var (
	_ store.GraphStore   = (*Store)(nil)
	_ store.ConceptIndex = (*Store)(nil)
)

// Config holds database configuration
type Config struct {
	Path         string // Database file path
	SkipVecTable bool   // Skip the vec_concepts table (for testing without sqlite-vec)
}

// Open opens or creates a database with the given configuration
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbExists := false
	if _, err := os.Stat(cfg.Path); err == nil {
		dbExists = true
	}

	// Enable sqlite-vec extension for all future connections
	if !cfg.SkipVecTable {
		sqlite_vec.Auto()
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", cfg.Path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer, multiple readers
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{conn: conn, path: cfg.Path, skipVecTable: cfg.SkipVecTable}
	if err := s.initSchema(dbExists); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates tables and indexes if they don't exist
func (s *Store) initSchema(dbExists bool) error {
	for _, pragma := range []string{EnableWALMode, SetWALCheckpoint, EnableForeignKeys} {
		if _, err := s.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schemas := []string{
		CreateMetaTable,
		CreateNodesTable,
		CreateEdgesTable,
		CreateEdgesSourceIndex,
		CreateEdgesTargetIndex,
		CreateTransitionMapsTable,
		CreatePathSourcesTable,
		CreatePathsTable,
		CreateConceptVectorsTable,
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, schema := range schemas {
		if _, err := tx.Exec(schema); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if !dbExists {
		now := time.Now().UTC().Format(time.RFC3339)
		for key, value := range map[string]string{
			MetaKeySchemaVersion: SchemaVersion,
			MetaKeyCreatedAt:     now,
		} {
			if _, err := tx.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
				return fmt.Errorf("failed to insert meta %s: %w", key, err)
			}
		}
	} else {
		var version string
		err := tx.QueryRow("SELECT value FROM meta WHERE key = ?", MetaKeySchemaVersion).Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if err == nil && version != SchemaVersion {
			return fmt.Errorf("schema version mismatch: database has %s, expected %s", version, SchemaVersion)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// Close closes the database connection and flushes WAL
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	_, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	closeErr := s.conn.Close()
	if err != nil {
		slog.Warn("Failed to checkpoint WAL", "error", err)
	}

	s.conn = nil
	return closeErr
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// GetMeta retrieves a metadata value by key
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta: %w", err)
	}
	return value, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// HealthCheck verifies database connectivity and schema
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	version, _, err := s.GetMeta(ctx, MetaKeySchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %s, got %s", SchemaVersion, version)
	}

	var journalMode string
	if err := s.conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled, got: %s", journalMode)
	}
	return nil
}

func (s *Store) Metadata(ctx context.Context) (store.Metadata, error) {
	saved, ok, err := s.GetMeta(ctx, MetaKeyGraphSavedAt)
	if err != nil {
		return store.Metadata{}, err
	}
	if !ok {
		return store.Metadata{}, store.ErrGraphNotFound
	}

	meta := store.Metadata{SchemaVersion: SchemaVersion}
	meta.GraphSavedAt, _ = time.Parse(time.RFC3339Nano, saved)
	meta.RunID, _, _ = s.GetMeta(ctx, MetaKeyRunID)
	if derived, ok, _ := s.GetMeta(ctx, MetaKeyDerivedAt); ok {
		meta.DerivedAt, _ = time.Parse(time.RFC3339Nano, derived)
	}

	counts := []struct {
		table string
		dst   *int
	}{
		{"nodes", &meta.Nodes},
		{"edges", &meta.Edges},
		{"transition_maps", &meta.TransitionMaps},
		{"paths", &meta.Paths},
	}
	for _, c := range counts {
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return store.Metadata{}, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return meta, nil
}

// withTx runs fn inside a transaction
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
