package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wouteroostervld/contextmesh/pkg/config"
	"github.com/wouteroostervld/contextmesh/pkg/extract"
	"github.com/wouteroostervld/contextmesh/pkg/filter"
	"github.com/wouteroostervld/contextmesh/pkg/pipeline"
	"github.com/wouteroostervld/contextmesh/pkg/scanner"
	"github.com/wouteroostervld/contextmesh/pkg/store"
	"github.com/wouteroostervld/contextmesh/pkg/store/jsonfs"
	"github.com/wouteroostervld/contextmesh/pkg/store/sqlite"
)

// app bundles the resolved config with the collaborators built from it
type app struct {
	cfg    *config.Resolved
	store  store.GraphStore
	filter *filter.Filter
}

func loadApp() (*app, error) {
	cfg, err := config.NewDefaultLoader().Resolve(config.ResolveOptions{
		ConfigPath:  configPath,
		Profile:     profileName,
		ProjectRoot: projectRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("Config resolved",
		"profile", cfg.ProfileName,
		"config", cfg.ConfigPath,
		"local", cfg.LocalConfigPath,
		"root", cfg.ProjectRoot,
		"store", cfg.Store.Driver)

	f, err := filter.New(filter.Options{
		Exclude:    cfg.Exclude,
		Blacklist:  cfg.Blacklist,
		Whitelist:  cfg.Whitelist,
		Extensions: cfg.Extensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}
	slog.Debug("Filter configured", "blacklist_count", len(cfg.Blacklist), "whitelist_count", len(cfg.Whitelist))

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: st, filter: f}, nil
}

// openStore picks the GraphStore implementation for the configured driver
func openStore(sc config.StoreConfig) (store.GraphStore, error) {
	switch sc.Driver {
	case config.DriverJSON, "":
		st, err := jsonfs.Open(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open json store: %w", err)
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(sqlite.Config{Path: sc.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", sc.Driver)
	}
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) scanner() (*scanner.Scanner, error) {
	return scanner.New(scanner.Config{Base: a.cfg.ProjectRoot, Filter: a.filter})
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	sc, err := a.scanner()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Store:     a.store,
		Scanner:   sc,
		Extractor: extract.New(nil),
		Settings:  a.cfg.Settings,
		Include:   a.cfg.Include,
	})
}

// watchIgnores lists generated paths that must not retrigger a run
func (a *app) watchIgnores() []string {
	ignore := []string{filepath.Join(a.cfg.OutputDir, "context-enhanced")}
	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			ignore = append(ignore, a.cfg.Store.Path+suffix)
		}
	default:
		ignore = append(ignore,
			filepath.Join(a.cfg.Store.Path, jsonfs.GraphFile),
			filepath.Join(a.cfg.Store.Path, jsonfs.MetaFile),
			filepath.Join(a.cfg.Store.Path, jsonfs.MapsDir),
		)
	}
	return ignore
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withHint adds the next step to errors a user can fix by running a stage
func withHint(err error) error {
	switch {
	case errors.Is(err, store.ErrGraphNotFound):
		return fmt.Errorf("%w (run 'contextmesh build' first)", err)
	case errors.Is(err, store.ErrPathsNotFound), errors.Is(err, store.ErrMapNotFound):
		return fmt.Errorf("%w (run 'contextmesh transitions' first)", err)
	}
	return err
}
