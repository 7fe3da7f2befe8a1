package config

import "github.com/wouteroostervld/contextmesh/pkg/graph"

// GlobalConfig represents the main configuration file at ~/.contextmesh/config.yaml
type GlobalConfig struct {
	Version       string              `yaml:"version"`
	ActiveProfile string              `yaml:"active_profile"`
	Profiles      map[string]*Profile `yaml:"profiles"`
}

// Profile represents a single configuration profile with all settings
type Profile struct {
	// Directory-level filtering, relative to the project root
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// File-level filtering (regex on absolute paths)
	Blacklist  []string `yaml:"blacklist"`  // Reject patterns (applied first)
	Whitelist  []string `yaml:"whitelist"`  // Exception patterns (override blacklist)
	Extensions []string `yaml:"extensions"` // Empty admits every extension

	// Where artifacts and enhanced files are written, relative to the project root
	OutputDir string `yaml:"output_dir"`

	Store      StoreConfig      `yaml:"store"`
	Graph      GraphConfig      `yaml:"graph"`
	Distribute DistributeConfig `yaml:"distribute"`
}

// Store drivers
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// StoreConfig selects the GraphStore implementation
type StoreConfig struct {
	Driver string `yaml:"driver"`         // "json" (default) or "sqlite"
	Path   string `yaml:"path,omitempty"` // Directory for json, database file for sqlite
}

// GraphConfig mirrors graph.Settings. Zero values keep the engine defaults.
type GraphConfig struct {
	MinSimilarity      float64            `yaml:"min_similarity,omitempty"`
	MaxPathLength      int                `yaml:"max_path_length,omitempty"`
	ConceptWeight      float64            `yaml:"concept_weight,omitempty"`
	KeywordWeight      float64            `yaml:"keyword_weight,omitempty"`
	TypeBonus          float64            `yaml:"type_bonus,omitempty"`
	DirectWeight       float64            `yaml:"direct_weight,omitempty"`
	HopWeight          float64            `yaml:"hop_weight,omitempty"`
	ConnectionWeight   float64            `yaml:"connection_weight,omitempty"`
	TypePriorityWeight float64            `yaml:"type_priority_weight,omitempty"`
	TypePriority       map[string]float64 `yaml:"type_priority,omitempty"`
	MinImportant       int                `yaml:"min_important,omitempty"`
	ImportantFraction  float64            `yaml:"important_fraction,omitempty"`
	Workers            int                `yaml:"workers,omitempty"`
}

// DistributeConfig controls the enhanced-file writer
type DistributeConfig struct {
	MaxReferences int `yaml:"max_references,omitempty"`
}

// LocalConfig represents a project-local .contextmesh.yaml file.
// It may only narrow or extend the scan.
type LocalConfig struct {
	Include   []string `yaml:"include,omitempty"`   // Must stay inside the project root
	Exclude   []string `yaml:"exclude,omitempty"`   // Additional directories to skip
	Blacklist []string `yaml:"blacklist,omitempty"` // Additional file patterns to reject
}

// Resolved is the runtime configuration after merging global, local and
// environment settings. All paths are absolute.
type Resolved struct {
	ProjectRoot string
	Include     []string
	Exclude     []string
	Blacklist   []string
	Whitelist   []string // Global only, never modified by local
	Extensions  []string
	OutputDir   string

	Store         StoreConfig
	Settings      graph.Settings
	MaxReferences int

	// Metadata for tracking
	ProfileName     string
	ConfigPath      string // Empty when built-in defaults were used
	LocalConfigPath string // Empty when no .contextmesh.yaml was found
}
