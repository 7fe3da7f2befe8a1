package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wouteroostervld/contextmesh/pkg/document"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
)

const (
	// DefaultProfileName is the profile written by init and used without a config file
	DefaultProfileName = "default"

	// DefaultMaxReferences caps the connections written into an enhanced file
	DefaultMaxReferences = 7

	configVersion = "1"
)

// DefaultProfile returns the built-in scan and engine settings
func DefaultProfile() *Profile {
	return &Profile{
		Include:    []string{".cursor/rules", "src", "docs", "tests"},
		Exclude:    []string{},
		Blacklist:  []string{},
		Whitelist:  []string{},
		Extensions: []string{".md", ".mdc", ".js", ".ts", ".jsx", ".tsx", ".html", ".css", ".json"},
		OutputDir:  ".cursor",
		Store:      StoreConfig{Driver: DriverJSON},
		Distribute: DistributeConfig{MaxReferences: DefaultMaxReferences},
	}
}

// DefaultConfig returns a config holding only the default profile
func DefaultConfig() *GlobalConfig {
	return &GlobalConfig{
		Version:       configVersion,
		ActiveProfile: DefaultProfileName,
		Profiles:      map[string]*Profile{DefaultProfileName: DefaultProfile()},
	}
}

// WriteDefault writes DefaultConfig to path, refusing to overwrite an existing file
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Settings overlays the profile's graph section onto the engine defaults
func (p *Profile) Settings() graph.Settings {
	s := graph.DefaultSettings()
	g := p.Graph

	setFloat(&s.MinSimilarity, g.MinSimilarity)
	setInt(&s.MaxPathLength, g.MaxPathLength)
	setFloat(&s.ConceptWeight, g.ConceptWeight)
	setFloat(&s.KeywordWeight, g.KeywordWeight)
	setFloat(&s.TypeBonus, g.TypeBonus)
	setFloat(&s.DirectWeight, g.DirectWeight)
	setFloat(&s.HopWeight, g.HopWeight)
	setFloat(&s.ConnectionWeight, g.ConnectionWeight)
	setFloat(&s.TypePriorityWeight, g.TypePriorityWeight)
	setInt(&s.MinImportant, g.MinImportant)
	setFloat(&s.ImportantFraction, g.ImportantFraction)
	setInt(&s.Workers, g.Workers)

	for name, priority := range g.TypePriority {
		s.TypePriority[document.Type(name)] = priority
	}

	s.Validate()
	return s
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
