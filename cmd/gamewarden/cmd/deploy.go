package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gamewarden/gamewarden/internal/service/deploy"
)

var (
	// skipService leaves the service unit alone during deploy.
	skipService bool

	// skipFirewall leaves the firewall alone during deploy.
	skipFirewall bool

	// deployCmd provisions a fresh host for the managed game server.
	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Provision this host: service user, directories, data, unit, firewall",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &deploy.Options{
				ConfigPath:   configPath,
				SkipService:  skipService,
				SkipFirewall: skipFirewall,
			}

			return deploy.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	deployCmd.Flags().BoolVar(&skipService, "skip-service", false,
		"do not install the service unit")
	deployCmd.Flags().BoolVar(&skipFirewall, "skip-firewall", false,
		"do not touch the firewall")

	rootCmd.AddCommand(deployCmd)
}
