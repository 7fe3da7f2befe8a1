package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wouteroostervld/contextmesh/pkg/config"
	"github.com/wouteroostervld/contextmesh/pkg/distribute"
	"github.com/wouteroostervld/contextmesh/pkg/graph"
	"github.com/wouteroostervld/contextmesh/pkg/pipeline"
	"github.com/wouteroostervld/contextmesh/pkg/store"
	"github.com/wouteroostervld/contextmesh/pkg/watcher"
)

var (
	relatedK      int
	watchDebounce time.Duration
	watchNoDist   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Scan the corpus and persist the similarity graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		stats, err := p.Build(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Graph built: %d nodes, %d edges from %d files\n", stats.Nodes, stats.Edges, stats.Files)
		return nil
	},
}

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "Derive transition maps and shortest paths from the stored graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		stats, err := p.Derive(ctx)
		if err != nil {
			return withHint(err)
		}
		fmt.Printf("✓ %d transition maps, %d paths between %d important nodes\n",
			stats.TransitionMaps, stats.Paths, stats.Important)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run both stages and distribute the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		built, derived, err := runAll(ctx, a, true)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Graph built: %d nodes, %d edges\n", built.Nodes, built.Edges)
		fmt.Printf("✓ %d transition maps, %d paths\n", derived.TransitionMaps, derived.Paths)
		return nil
	},
}

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Write enhanced copies of every file with links to related files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		res, err := distributeAll(ctx, a)
		if err != nil {
			return withHint(err)
		}
		fmt.Printf("✓ %d files written, %d enhanced with %d references\n", res.Written, res.Enhanced, res.References)
		return nil
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "List the documents most related to a document",
	Long: `List the documents most related to a document. The SQLite store
ranks by concept-vector distance; the JSON store uses the transition map.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		id := args[0]

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if idx, ok := a.store.(store.ConceptIndex); ok {
			neighbors, err := idx.Nearest(ctx, id, relatedK)
			if err != nil {
				return withHint(err)
			}
			fmt.Fprintln(tw, "DISTANCE\tID")
			for _, n := range neighbors {
				fmt.Fprintf(tw, "%.3f\t%s\n", n.Distance, n.ID)
			}
			return nil
		}

		m, err := a.store.LoadTransitionMap(ctx, id)
		if err != nil {
			return withHint(err)
		}
		fmt.Fprintln(tw, "SIMILARITY\tTYPE\tID\tVIA")
		for _, t := range graph.TopN(m.Transitions, relatedK) {
			via := "-"
			if t.Via != nil {
				via = t.Via.ID
			}
			fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", t.Similarity, t.TransitionType, t.ID, via)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rerun both stages whenever a corpus file changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if _, _, err := runAll(ctx, a, !watchNoDist); err != nil {
			return err
		}

		rerun := make(chan []string, 1)
		w, err := watcher.New(&watcher.Config{
			DebounceDelay: watchDebounce,
			Filter:        a.filter,
			Ignore:        a.watchIgnores(),
			OnChange: func(paths []string) {
				select {
				case rerun <- paths:
				default:
					// A rerun is already queued and will see these changes
				}
			},
		})
		if err != nil {
			return err
		}
		defer w.Close()

		for _, root := range a.cfg.Include {
			if err := w.WatchTree(root); err != nil {
				return err
			}
		}
		for _, path := range []string{a.cfg.ConfigPath, a.cfg.LocalConfigPath} {
			if path == "" {
				continue
			}
			if err := w.WatchFile(path); err != nil {
				slog.Warn("Failed to watch config file", "path", path, "error", err)
			}
		}

		go func() {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Watcher stopped", "error", err)
				cancel()
			}
		}()

		slog.Info("Watching for changes", "roots", len(a.cfg.Include), "dirs", len(w.Watched()))
		for {
			select {
			case <-ctx.Done():
				slog.Info("Shutting down")
				return nil
			case paths := <-rerun:
				slog.Info("Changes detected, rebuilding", "paths", len(paths), "first", paths[0])
				if _, _, err := runAll(ctx, a, !watchNoDist); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					slog.Error("Rebuild failed", "error", err)
				}
			}
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the store currently holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("contextmesh Status")
		fmt.Println("==================")
		fmt.Printf("Profile:        %s\n", a.cfg.ProfileName)
		fmt.Printf("Store:          %s (%s)\n", a.cfg.Store.Path, a.cfg.Store.Driver)
		fmt.Println()

		meta, err := a.store.Metadata(cmd.Context())
		if errors.Is(err, store.ErrGraphNotFound) {
			fmt.Println("No graph built yet. Run 'contextmesh build'.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Run ID:         %s\n", meta.RunID)
		fmt.Printf("Graph saved:    %s\n", meta.GraphSavedAt.Local().Format(time.RFC3339))
		fmt.Printf("Nodes:          %d\n", meta.Nodes)
		fmt.Printf("Edges:          %d\n", meta.Edges)
		if meta.DerivedAt.IsZero() {
			fmt.Println("Transitions:    not derived")
			return nil
		}
		fmt.Printf("Derived:        %s\n", meta.DerivedAt.Local().Format(time.RFC3339))
		fmt.Printf("Maps:           %d\n", meta.TransitionMaps)
		fmt.Printf("Paths:          %d\n", meta.Paths)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.NewDefaultLoader().DefaultPath(); err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println("✓ Config written to", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("contextmesh version %s\n", version)
	},
}

func init() {
	relatedCmd.Flags().IntVarP(&relatedK, "k", "k", 10, "Number of related documents to list")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "Quiet period before a rebuild starts")
	watchCmd.Flags().BoolVar(&watchNoDist, "no-distribute", false, "Only rebuild the graph and transitions")
}

// runAll runs both stages and optionally distributes the results
func runAll(ctx context.Context, a *app, distributeFiles bool) (built pipeline.BuildStats, derived pipeline.DeriveStats, err error) {
	p, err := a.pipeline()
	if err != nil {
		return built, derived, err
	}
	if built, derived, err = p.Run(ctx); err != nil {
		return built, derived, err
	}
	if distributeFiles {
		if _, err := distributeAll(ctx, a); err != nil {
			return built, derived, err
		}
	}
	return built, derived, nil
}

// distributeAll rescans the corpus and writes enhanced copies
func distributeAll(ctx context.Context, a *app) (distribute.Result, error) {
	sc, err := a.scanner()
	if err != nil {
		return distribute.Result{}, err
	}
	scanned, err := sc.Scan(ctx, a.cfg.Include)
	if err != nil {
		return distribute.Result{}, fmt.Errorf("failed to scan corpus: %w", err)
	}

	d, err := distribute.New(distribute.Config{
		Store:         a.store,
		OutputDir:     a.cfg.OutputDir,
		MaxReferences: a.cfg.MaxReferences,
	})
	if err != nil {
		return distribute.Result{}, err
	}
	return d.Distribute(ctx, scanned.Files)
}
