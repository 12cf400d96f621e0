package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/preflight"
	"github.com/rel-k8s/relctl/internal/release"
	"github.com/rel-k8s/relctl/internal/secrets"
	"github.com/rel-k8s/relctl/internal/verify"
)

// preflightTimeout bounds the read-only checks before any mutation.
const preflightTimeout = 2 * time.Minute

// newInstallCommand creates the "install" subcommand that installs or
// upgrades the release and verifies workload readiness.
func newInstallCommand(opts *Options) *cobra.Command {
	var (
		valuesFile string
		skipSecr   bool
		skipDeps   bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or upgrade the application release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			inv, err := config.Load(opts.ConfigPath, config.Overrides{
				Namespace:   opts.Namespace,
				ReleaseName: opts.ReleaseName,
				ValuesFile:  valuesFile,
				KubeContext: opts.KubeContext,
			})
			if err != nil {
				return err
			}

			helm, kubectl := newGateways(inv, logger)

			ctxCheck, cancelCheck := context.WithTimeout(cmd.Context(), preflightTimeout)
			defer cancelCheck()
			checker := preflight.NewChecker(kubectl, logger)
			if err := checker.Check(ctxCheck, inv.Namespace); err != nil {
				return fmt.Errorf("preflight: %w", err)
			}

			return runInstall(cmd.Context(), logger, os.Stdout, inv,
				release.NewReconciler(helm, logger),
				secrets.NewManager(kubectl, logger),
				verify.NewPoller(kubectl, logger, inv.PollInterval, inv.WaitTimeout),
				release.Options{
					DryRun:           dryRun,
					SkipDependencies: skipDeps,
					SkipSecrets:      skipSecr,
				},
			)
		},
	}

	cmd.Flags().StringVar(&valuesFile, "values-file", "", "Path to the values overlay passed to helm")
	cmd.Flags().BoolVar(&skipSecr, "skip-secrets", false, "Do not create managed secrets")
	cmd.Flags().BoolVar(&skipDeps, "skip-dependencies", false, "Do not resolve chart dependencies")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render and print manifests without applying anything")

	return cmd
}

// runInstall drives the install path after preflight: plan, validate,
// ensure secrets, atomic apply, then a best-effort readiness poll.
func runInstall(
	ctx context.Context,
	logger *slog.Logger,
	renderOut io.Writer,
	inv config.Invocation,
	reconciler *release.Reconciler,
	manager *secrets.Manager,
	poller *verify.Poller,
	opts release.Options,
) error {
	plan, err := reconciler.BuildPlan(ctx, inv, opts)
	if err != nil {
		return err
	}

	rendered, err := reconciler.Prepare(ctx, inv, plan)
	if err != nil {
		return err
	}

	if plan.DryRun {
		if _, err := renderOut.Write(rendered); err != nil {
			return fmt.Errorf("write rendered manifests: %w", err)
		}
		logger.Info("dry run: rendered manifests only, nothing applied",
			"action", plan.Action,
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
		)
		return nil
	}

	if plan.SkipSecrets {
		logger.Info("skipping managed secret creation")
	} else {
		outcome := manager.Ensure(ctx, inv.Namespace, inv.Secrets)
		reportSecretOutcome(logger, outcome)
	}

	ctxApply, cancelApply := context.WithTimeout(ctx, inv.ApplyTimeout+time.Minute)
	defer cancelApply()
	revision, err := reconciler.Apply(ctxApply, inv, plan)
	if err != nil {
		return err
	}

	result := poller.AwaitHealthy(ctx, inv.Namespace, inv.LabelSelector())
	if result.Healthy {
		logger.Info("release deployed and healthy",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
			"revision", revision,
		)
	} else {
		// The apply already succeeded atomically; slow-starting workloads
		// are reported, not treated as install failure.
		logger.Warn("release deployed but workloads are not all ready yet",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
			"revision", revision,
			"ready", result.Last.Ready,
			"total", result.Last.Total,
		)
	}

	return nil
}

// reportSecretOutcome summarizes a secret batch without aborting on
// per-secret failures.
func reportSecretOutcome(logger *slog.Logger, outcome secrets.BatchResult) {
	logger.Info("managed secrets ensured",
		"created", outcome.Created,
		"already_present", outcome.AlreadyPresent,
	)
	for name, err := range outcome.Failed {
		logger.Warn("managed secret operation failed", "secret", name, "error", err)
	}
}
