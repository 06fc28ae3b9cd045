package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden/internal/service/selfupdate"
)

// selfUpdateCmd replaces the running gamewarden binary with the published release.
var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Update the gamewarden binary from the published release manifest",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return selfupdate.Run(ctx, &selfupdate.Options{ConfigPath: configPath})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(selfUpdateCmd)
}
