package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel is the minimum level for console output.
	logLevel string

	// rootCmd represents the base command for the game server lifecycle tool.
	rootCmd = &cobra.Command{
		Use:   "gamewarden",
		Short: "Manage the lifecycle of the installed game server",
		Long: "gamewarden keeps a game server installation current: it resolves the " +
			"latest published build, replaces the installed payload around a safe " +
			"service stop/start cycle, and provisions fresh hosts.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if lvl, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(lvl)
			}
		},
	}
)

// Execute runs the gamewarden CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
}
