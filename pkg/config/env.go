package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the active profile
const (
	EnvMinSimilarity = "CONTEXTMESH_MIN_SIMILARITY"
	EnvMaxPathLength = "CONTEXTMESH_MAX_PATH_LENGTH"
	EnvStore         = "CONTEXTMESH_STORE"
	EnvOutputDir     = "CONTEXTMESH_OUTPUT_DIR"
	EnvWorkers       = "CONTEXTMESH_WORKERS"
)

// readDotEnv parses <dir>/.env. A missing file yields an empty map.
func readDotEnv(dir string, fsys FileSystem) (map[string]string, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, ".env"))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse .env: %w", err)
	}
	return vars, nil
}

// applyEnv copies overrides from the environment into p. Process
// variables win over values from .env.
func applyEnv(p *Profile, getenv func(string) string, dotenv map[string]string) error {
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := lookup(EnvMinSimilarity); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMinSimilarity, err)
		}
		p.Graph.MinSimilarity = f
	}
	if v := lookup(EnvMaxPathLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxPathLength, err)
		}
		p.Graph.MaxPathLength = n
	}
	if v := lookup(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		p.Graph.Workers = n
	}
	if v := lookup(EnvStore); v != "" {
		p.Store.Driver = v
	}
	if v := lookup(EnvOutputDir); v != "" {
		p.OutputDir = v
	}
	return nil
}
