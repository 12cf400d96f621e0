package release

import (
	"context"
	"log/slog"
	"time"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/gateway"
)

// PackageManager is the subset of the gateway the reconciler drives.
type PackageManager interface {
	DependencyUpdate(ctx context.Context, chartPath string) error
	Lint(ctx context.Context, chartPath, valuesFile string) error
	Template(ctx context.Context, name, chartPath, namespace, valuesFile string) ([]byte, error)
	Status(ctx context.Context, name, namespace string) (gateway.ReleaseStatus, error)
	Install(ctx context.Context, name, chartPath, namespace, valuesFile string, timeout time.Duration) (int, error)
	Upgrade(ctx context.Context, name, chartPath, namespace, valuesFile string, timeout time.Duration) (int, error)
}

// Options carries the install-path flags that shape the plan.
type Options struct {
	DryRun           bool
	SkipDependencies bool
	SkipSecrets      bool
}

// Reconciler builds and executes operation plans.
type Reconciler struct {
	pkg    PackageManager
	logger *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(pkg PackageManager, logger *slog.Logger) *Reconciler {
	return &Reconciler{pkg: pkg, logger: logger}
}

// BuildPlan probes current cluster state and resolves the plan for this
// invocation. The probe is read-only; state is always derived fresh from
// the cluster, never from a local cache.
func (r *Reconciler) BuildPlan(ctx context.Context, inv config.Invocation, opts Options) (OperationPlan, error) {
	status, err := r.pkg.Status(ctx, inv.ReleaseName, inv.Namespace)
	if err != nil {
		return OperationPlan{}, &StageError{Stage: StageProbe, Err: err}
	}

	plan := OperationPlan{
		Action:           ActionInstall,
		DryRun:           opts.DryRun,
		SkipDependencies: opts.SkipDependencies,
		SkipSecrets:      opts.SkipSecrets,
		Secrets:          inv.SecretNames(),
	}
	if status.Exists {
		plan.Action = ActionUpgrade
		plan.CurrentRevision = status.Revision
	}

	r.logger.Debug("operation plan resolved",
		"action", plan.Action,
		"current_revision", plan.CurrentRevision,
		"dry_run", plan.DryRun,
	)
	return plan, nil
}

// Prepare runs dependency resolution and static validation: lint plus a
// full client-side render against the supplied values, catching
// structural errors before any mutation. Returns the rendered manifests.
// Every failure is fatal and labeled with its stage.
func (r *Reconciler) Prepare(ctx context.Context, inv config.Invocation, plan OperationPlan) ([]byte, error) {
	if plan.SkipDependencies {
		r.logger.Info("skipping chart dependency resolution")
	} else {
		r.logger.Info("resolving chart dependencies", "chart", inv.ChartPath)
		if err := r.pkg.DependencyUpdate(ctx, inv.ChartPath); err != nil {
			return nil, &StageError{Stage: StageDependencies, Err: err}
		}
	}

	r.logger.Info("validating release bundle", "chart", inv.ChartPath)
	if err := r.pkg.Lint(ctx, inv.ChartPath, inv.ValuesFile); err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}
	rendered, err := r.pkg.Template(ctx, inv.ReleaseName, inv.ChartPath, inv.Namespace, inv.ValuesFile)
	if err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}

	return rendered, nil
}

// Apply performs the atomic install or upgrade resolved by the plan and
// returns the new revision.
//
// The apply is atomic by contract: the call blocks until readiness or
// the timeout elapses, and on failure the platform reverts to the last
// deployed revision, so no partially-applied state is left observable as
// deployed.
func (r *Reconciler) Apply(ctx context.Context, inv config.Invocation, plan OperationPlan) (int, error) {
	var (
		revision int
		err      error
	)
	switch plan.Action {
	case ActionUpgrade:
		r.logger.Info("upgrading release",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
			"from_revision", plan.CurrentRevision,
			"timeout", inv.ApplyTimeout,
		)
		revision, err = r.pkg.Upgrade(ctx, inv.ReleaseName, inv.ChartPath, inv.Namespace, inv.ValuesFile, inv.ApplyTimeout)
	default:
		r.logger.Info("installing release",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
			"timeout", inv.ApplyTimeout,
		)
		revision, err = r.pkg.Install(ctx, inv.ReleaseName, inv.ChartPath, inv.Namespace, inv.ValuesFile, inv.ApplyTimeout)
	}
	if err != nil {
		return 0, &StageError{Stage: StageApply, Err: err}
	}

	r.logger.Info("release applied", "release", inv.ReleaseName, "revision", revision)
	return revision, nil
}
