package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfigName is the project-local override file
const LocalConfigName = ".contextmesh.yaml"

// LoadGlobalConfigFromPath loads global config from a specific path using provided FileSystem
func LoadGlobalConfigFromPath(path string, fsys FileSystem) (*GlobalConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.ActiveProfile == "" {
		return nil, fmt.Errorf("active_profile not specified in config")
	}
	if _, ok := config.Profiles[config.ActiveProfile]; !ok {
		return nil, fmt.Errorf("active profile %s not found in config", config.ActiveProfile)
	}

	return &config, nil
}

// FindLocalConfigWithFS walks up from startDir to find the nearest .contextmesh.yaml.
// Returns an empty path when there is none.
func FindLocalConfigWithFS(startDir string, fsys FileSystem) (string, error) {
	currentDir, err := fsys.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		configPath := filepath.Join(currentDir, LocalConfigName)
		if _, err := fsys.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}

// LoadLocalConfigWithFS loads a local .contextmesh.yaml file
func LoadLocalConfigWithFS(path string, fsys FileSystem) (*LocalConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local config: %w", err)
	}

	var config LocalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse local config: %w", err)
	}
	return &config, nil
}

// ResolveOptions selects what Resolve loads
type ResolveOptions struct {
	// ConfigPath overrides ~/.contextmesh/config.yaml. An explicit path must exist.
	ConfigPath string
	// Profile overrides the config's active_profile.
	Profile string
	// ProjectRoot anchors relative include and output paths.
	ProjectRoot string
}

// Resolve loads the global config (or the defaults), applies the local
// config and environment overrides and returns absolute runtime settings.
func (l *Loader) Resolve(opts ResolveOptions) (*Resolved, error) {
	root, err := l.fs.Abs(opts.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	global, configPath, err := l.loadGlobal(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	name := global.ActiveProfile
	if opts.Profile != "" {
		name = opts.Profile
	}
	base, ok := global.Profiles[name]
	if !ok || base == nil {
		return nil, fmt.Errorf("profile %s not found in config", name)
	}
	profile := *base

	dotenv, err := readDotEnv(root, l.fs)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(&profile, l.getenv, dotenv); err != nil {
		return nil, err
	}

	var local *LocalConfig
	localPath, err := l.FindLocal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to find local config: %w", err)
	}
	if localPath != "" {
		if local, err = l.LoadLocal(localPath); err != nil {
			return nil, err
		}
	}

	resolved, err := Merge(root, &profile, local, filepath.Dir(localPath))
	if err != nil {
		return nil, err
	}
	resolved.ProfileName = name
	resolved.ConfigPath = configPath
	resolved.LocalConfigPath = localPath
	return resolved, nil
}

// loadGlobal reads an explicit config path, or the default path falling
// back to the built-in defaults when it does not exist.
func (l *Loader) loadGlobal(explicit string) (*GlobalConfig, string, error) {
	if explicit != "" {
		global, err := l.LoadGlobalFromPath(explicit)
		if err != nil {
			return nil, "", err
		}
		return global, explicit, nil
	}

	path, err := l.DefaultPath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}
	global, err := l.LoadGlobalFromPath(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config not found, using defaults", "path", path)
		return DefaultConfig(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return global, path, nil
}

// Merge combines a profile with an optional local config. Local config may
// add include roots inside the project, excludes and blacklist patterns.
func Merge(root string, profile *Profile, local *LocalConfig, localConfigDir string) (*Resolved, error) {
	include, err := ResolvePaths(root, profile.Include)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve include paths: %w", err)
	}

	merged := &Resolved{
		ProjectRoot:   root,
		Include:       include,
		Exclude:       append([]string{}, profile.Exclude...),
		Blacklist:     append([]string{}, profile.Blacklist...),
		Whitelist:     profile.Whitelist,
		Extensions:    profile.Extensions,
		Store:         profile.Store,
		Settings:      profile.Settings(),
		MaxReferences: profile.Distribute.MaxReferences,
	}
	if merged.MaxReferences <= 0 {
		merged.MaxReferences = DefaultMaxReferences
	}

	outputDir := profile.OutputDir
	if outputDir == "" {
		outputDir = DefaultProfile().OutputDir
	}
	if merged.OutputDir, err = ResolveRelativePath(root, outputDir); err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}

	switch merged.Store.Driver {
	case "", DriverJSON:
		merged.Store.Driver = DriverJSON
		if merged.Store.Path == "" {
			merged.Store.Path = merged.OutputDir
		}
	case DriverSQLite:
		if merged.Store.Path == "" {
			merged.Store.Path = filepath.Join(merged.OutputDir, "context-graph.db")
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", merged.Store.Driver)
	}
	if merged.Store.Path, err = ResolveRelativePath(root, merged.Store.Path); err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}

	if local == nil {
		return merged, nil
	}

	localInclude, err := ResolvePaths(localConfigDir, local.Include)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local include paths: %w", err)
	}
	for _, p := range localInclude {
		if !WithinRoot(p, root) {
			return nil, fmt.Errorf("local include path %s is outside the project root %s", p, root)
		}
	}
	merged.Include = append(merged.Include, localInclude...)

	localExclude, err := ResolvePaths(localConfigDir, local.Exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local exclude paths: %w", err)
	}
	merged.Exclude = append(merged.Exclude, localExclude...)
	merged.Blacklist = append(merged.Blacklist, local.Blacklist...)

	return merged, nil
}
