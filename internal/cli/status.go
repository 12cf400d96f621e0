package cli

import (
	"github.com/spf13/cobra"

	"github.com/rel-k8s/relctl/internal/config"
)

// newStatusCommand creates the "status" subcommand that shows the
// release record and a readiness snapshot of its workloads.
func newStatusCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show release and workload status",
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

			helm, kubectl := newGateways(inv, logger)

			status, err := helm.Status(cmd.Context(), inv.ReleaseName, inv.Namespace)
			if err != nil {
				return err
			}
			if !status.Exists {
				logger.Info("release is not installed", "release", inv.ReleaseName, "namespace", inv.Namespace)
				return nil
			}

			readiness, err := kubectl.WorkloadsReady(cmd.Context(), inv.Namespace, inv.LabelSelector())
			if err != nil {
				return err
			}

			logger.Info("release status",
				"release", inv.ReleaseName,
				"namespace", inv.Namespace,
				"revision", status.Revision,
				"status", status.Status,
				"ready", readiness.Ready,
				"total", readiness.Total,
			)
			if len(readiness.NotReady) > 0 {
				logger.Warn("workloads not ready", "pods", readiness.NotReady)
			}
			return nil
		},
	}

	return cmd
}
