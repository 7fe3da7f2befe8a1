package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wouteroostervld/contextmesh/pkg/logging"
)

const version = "0.1.0"

// Global flags
var (
	configPath  string
	profileName string
	projectRoot string
	debug       bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "contextmesh",
	Short: "Link related documents through a context relationship graph",
	Long: `contextmesh scans rules, docs and source files, scores how closely
they relate and derives transition maps and shortest paths between the
most important documents. Enhanced copies of each file carry links to
their closest relatives.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, debug)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.contextmesh/config.yaml)")
	flags.StringVar(&profileName, "profile", "", "Profile to use instead of the active profile")
	flags.StringVar(&projectRoot, "root", ".", "Project root that include paths are relative to")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVar(&logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildCmd,
		transitionsCmd,
		runCmd,
		distributeCmd,
		relatedCmd,
		watchCmd,
		statusCmd,
		initCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
