package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/preflight"
)

// newPreflightCommand creates the "preflight" subcommand that runs the
// read-only environment checks without mutating anything.
func newPreflightCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run preflight checks (tools, cluster, namespace)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			inv, err := config.Load(opts.ConfigPath, config.Overrides{
				Namespace:   opts.Namespace,
				ReleaseName: opts.ReleaseName,
				KubeContext: opts.KubeContext,
			})
			if err != nil {
				return err
			}

			_, kubectl := newGateways(inv, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), preflightTimeout)
			defer cancel()

			checker := preflight.NewChecker(kubectl, logger)
			if err := checker.Check(ctx, inv.Namespace); err != nil {
				return err
			}

			logger.Info("preflight checks passed", "namespace", inv.Namespace)
			return nil
		},
	}

	return cmd
}
