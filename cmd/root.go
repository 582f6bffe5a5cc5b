// Package cmd implements the pgopipe CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgopipe/pgopipe/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	outputDir string
	plain     bool

	appVersion = "dev"

	// exitCode carries a non-zero run verdict out to Execute, the one
	// place that terminates the process, so deferred cleanup in command
	// handlers always runs.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "pgopipe",
	Short: "pgopipe — profile-guided and post-link optimized builds",
	Long: "pgopipe drives a native build through profile collection, profile-guided\n" +
		"recompilation, and post-link layout optimization, degrading gracefully\n" +
		"when profiling is unavailable.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logging.Init(level, "text", os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pgopipe.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", ".", "output directory for run artifacts")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "disable the interactive progress view")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(probeCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("pgopipe %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
