package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden/internal/service/selfupdate"
)

var (
	// releaseOutputDir is where the manifest is written.
	releaseOutputDir string

	// releaseCmd produces the self-update manifest for a built binary.
	releaseCmd = &cobra.Command{
		Use:   "release <binary>",
		Short: "Generate the release manifest for a built gamewarden binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			options := &selfupdate.PublishOptions{
				BinaryPath: args[0],
				OutputDir:  releaseOutputDir,
			}

			return selfupdate.Publish(context.Background(), options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	releaseCmd.Flags().StringVarP(&releaseOutputDir, "output", "o", "",
		"directory for the manifest (defaults to the binary's directory)")

	rootCmd.AddCommand(releaseCmd)
}
