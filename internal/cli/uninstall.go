package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/preflight"
	"github.com/rel-k8s/relctl/internal/secrets"
	"github.com/rel-k8s/relctl/internal/teardown"
)

// newUninstallCommand creates the "uninstall" subcommand that removes the
// release and, on request, its managed secrets or whole namespace.
func newUninstallCommand(opts *Options) *cobra.Command {
	var (
		removeSecrets   bool
		removeNamespace bool
		force           bool
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Tear down the application release",
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

			ctxCheck, cancelCheck := context.WithTimeout(cmd.Context(), preflightTimeout)
			defer cancelCheck()
			checker := preflight.NewChecker(kubectl, logger)
			if err := checker.CheckConnection(ctxCheck); err != nil {
				return fmt.Errorf("preflight: %w", err)
			}

			manager := secrets.NewManager(kubectl, logger)
			coordinator := teardown.NewCoordinator(kubectl, helm, manager, newTerminalConfirmer(cmd.InOrStdin(), cmd.OutOrStdout()), logger, inv.SweepTimeout)

			plan, err := coordinator.Plan(cmd.Context(), inv)
			if err != nil {
				return err
			}

			if dryRun {
				printRemovalPlan(cmd, inv, plan, teardown.Options{
					RemoveSecrets:   removeSecrets,
					RemoveNamespace: removeNamespace,
				})
				return nil
			}

			result, err := coordinator.Execute(cmd.Context(), inv, plan, teardown.Options{
				RemoveSecrets:   removeSecrets,
				RemoveNamespace: removeNamespace,
				Force:           force,
			})
			if err != nil {
				return fmt.Errorf("teardown: %w", err)
			}

			switch {
			case result.NothingToDo:
				logger.Info("nothing to uninstall", "release", inv.ReleaseName, "namespace", inv.Namespace)
			case result.Cancelled:
				logger.Info("uninstall aborted, no changes made")
			default:
				logger.Info("uninstall complete",
					"release", inv.ReleaseName,
					"namespace", inv.Namespace,
					"residual", len(result.Residual),
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeSecrets, "remove-secrets", false, "Also delete the managed secrets")
	cmd.Flags().BoolVar(&removeNamespace, "remove-namespace", false, "Delete the whole namespace (supersedes release and secret removal)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the removal plan without deleting anything")

	return cmd
}

// printRemovalPlan writes the read-only removal plan for --dry-run.
func printRemovalPlan(cmd *cobra.Command, inv config.Invocation, plan teardown.RemovalPlan, opts teardown.Options) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Removal plan for release %q in namespace %q:\n", inv.ReleaseName, inv.Namespace)
	if !plan.NamespaceExists {
		fmt.Fprintln(out, "  namespace does not exist; nothing to do")
		return
	}
	if !plan.Release.Exists {
		fmt.Fprintln(out, "  release does not exist; nothing to do")
		return
	}
	if opts.RemoveNamespace {
		fmt.Fprintf(out, "  delete namespace %q (supersedes release and secret removal)\n", inv.Namespace)
		return
	}

	fmt.Fprintf(out, "  uninstall release (current revision %d, status %s)\n", plan.Release.Revision, plan.Release.Status)
	if opts.RemoveSecrets {
		fmt.Fprintf(out, "  delete managed secrets: %v (present: %v)\n", inv.SecretNames(), plan.SecretsPresent)
	}
	fmt.Fprintf(out, "  sweep %d labeled resource(s)\n", len(plan.LabeledResources))
	for _, r := range plan.LabeledResources {
		fmt.Fprintf(out, "    %s\n", r)
	}
}
