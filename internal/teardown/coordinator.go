// Package teardown drives confirmation-gated, selective removal of a
// release, its managed secrets, its residual labeled resources, and
// optionally its namespace.
package teardown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/gateway"
	"github.com/rel-k8s/relctl/internal/secrets"
)

// Cluster is the subset of the gateway the coordinator needs.
type Cluster interface {
	NamespaceExists(ctx context.Context, name string) (bool, error)
	SecretExists(ctx context.Context, namespace, name string) (bool, error)
	ListResources(ctx context.Context, namespace, labelSelector string) ([]string, error)
	DeleteResources(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error
	DeleteNamespace(ctx context.Context, name string, timeout time.Duration) error
}

// PackageManager is the release-removal slice of the gateway.
type PackageManager interface {
	Status(ctx context.Context, name, namespace string) (gateway.ReleaseStatus, error)
	Uninstall(ctx context.Context, name, namespace string, timeout time.Duration) error
}

// SecretRemover removes managed secrets as a best-effort batch.
type SecretRemover interface {
	Remove(ctx context.Context, namespace string, names []string) secrets.BatchResult
}

// PromptKind identifies which destructive action needs confirming.
// Confirmation is scoped to the most destructive action requested.
type PromptKind int

const (
	// PromptRelease confirms removal of the release (and optionally its secrets).
	PromptRelease PromptKind = iota
	// PromptNamespace confirms removal of the whole namespace, a strictly
	// stronger action with a stronger warning.
	PromptNamespace
)

// Confirmer answers destructive-action prompts. Injectable so tests
// supply scripted answers instead of terminal input.
type Confirmer interface {
	Confirm(kind PromptKind, subject string) (bool, error)
}

// RemovalPlan is a read-only enumeration of what is present and would be
// removed. Building it issues no destructive calls.
type RemovalPlan struct {
	NamespaceExists bool
	Release         gateway.ReleaseStatus
	// SecretsPresent lists which managed secrets currently exist.
	SecretsPresent []string
	// LabeledResources is the current release-labeled resource set.
	LabeledResources []string
}

// Options are the uninstall-path flags.
type Options struct {
	// RemoveSecrets also deletes the managed secrets after the release.
	RemoveSecrets bool
	// RemoveNamespace deletes the whole namespace, superseding discrete
	// release and secret removal.
	RemoveNamespace bool
	// Force bypasses the confirmation prompt.
	Force bool
}

// Result reports the outcome of one teardown execution. Residuals and
// secret failures are warnings, not errors: teardown favors eventual
// convergence over strict atomicity.
type Result struct {
	// NothingToDo is set when an exit condition made the run a no-op.
	NothingToDo bool
	// Cancelled is set when the user declined the confirmation prompt.
	Cancelled bool
	// SecretOutcome is the per-secret removal report, when requested.
	SecretOutcome secrets.BatchResult
	// Residual lists labeled resources still present after the sweep.
	Residual []string
}

// Coordinator executes removal plans.
type Coordinator struct {
	cluster  Cluster
	pkg      PackageManager
	secrets  SecretRemover
	confirm  Confirmer
	logger   *slog.Logger
	sweepCap time.Duration
}

// NewCoordinator constructs a Coordinator. sweepTimeout bounds the
// residual bulk delete and the namespace delete wait.
func NewCoordinator(cluster Cluster, pkg PackageManager, remover SecretRemover, confirm Confirmer, logger *slog.Logger, sweepTimeout time.Duration) *Coordinator {
	return &Coordinator{
		cluster:  cluster,
		pkg:      pkg,
		secrets:  remover,
		confirm:  confirm,
		logger:   logger,
		sweepCap: sweepTimeout,
	}
}

// Plan enumerates current presence without mutating anything.
func (c *Coordinator) Plan(ctx context.Context, inv config.Invocation) (RemovalPlan, error) {
	var plan RemovalPlan

	exists, err := c.cluster.NamespaceExists(ctx, inv.Namespace)
	if err != nil {
		return plan, fmt.Errorf("query namespace %s: %w", inv.Namespace, err)
	}
	plan.NamespaceExists = exists
	if !exists {
		return plan, nil
	}

	plan.Release, err = c.pkg.Status(ctx, inv.ReleaseName, inv.Namespace)
	if err != nil {
		return plan, fmt.Errorf("query release %s/%s: %w", inv.Namespace, inv.ReleaseName, err)
	}

	for _, name := range inv.SecretNames() {
		present, err := c.cluster.SecretExists(ctx, inv.Namespace, name)
		if err != nil {
			return plan, fmt.Errorf("query secret %s/%s: %w", inv.Namespace, name, err)
		}
		if present {
			plan.SecretsPresent = append(plan.SecretsPresent, name)
		}
	}

	plan.LabeledResources, err = c.cluster.ListResources(ctx, inv.Namespace, inv.LabelSelector())
	if err != nil {
		return plan, fmt.Errorf("list labeled resources: %w", err)
	}

	return plan, nil
}

// Execute runs the removal state machine over the plan. Exit conditions
// are checked before any destructive call: an absent namespace or absent
// release is a no-op success. Namespace removal supersedes and skips
// discrete release and secret removal.
func (c *Coordinator) Execute(ctx context.Context, inv config.Invocation, plan RemovalPlan, opts Options) (Result, error) {
	var result Result

	if !plan.NamespaceExists {
		c.logger.Info("namespace does not exist, nothing to uninstall", "namespace", inv.Namespace)
		result.NothingToDo = true
		return result, nil
	}

	if !plan.Release.Exists {
		c.logger.Info("release not found, nothing to uninstall",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
		)
		result.NothingToDo = true
		return result, nil
	}

	if opts.RemoveNamespace {
		return c.removeNamespace(ctx, inv, opts)
	}

	if !opts.Force {
		ok, err := c.confirm.Confirm(PromptRelease, inv.ReleaseName)
		if err != nil {
			return result, fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			c.logger.Info("uninstall cancelled by user", "release", inv.ReleaseName)
			result.Cancelled = true
			return result, nil
		}
	}

	c.logger.Info("uninstalling release",
		"release", inv.ReleaseName,
		"namespace", inv.Namespace,
		"revision", plan.Release.Revision,
	)
	if err := c.pkg.Uninstall(ctx, inv.ReleaseName, inv.Namespace, inv.ApplyTimeout); err != nil {
		return result, fmt.Errorf("uninstall release %s/%s: %w", inv.Namespace, inv.ReleaseName, err)
	}

	if opts.RemoveSecrets {
		result.SecretOutcome = c.secrets.Remove(ctx, inv.Namespace, inv.SecretNames())
	}

	c.sweepResiduals(ctx, inv)

	residual, err := c.verifyRemoval(ctx, inv)
	if err != nil {
		c.logger.Warn("post-removal verification failed", "error", err)
		return result, nil
	}
	result.Residual = residual
	if len(residual) > 0 {
		c.logger.Warn("residual labeled resources remain; re-run or clean up manually", "resources", residual)
	} else {
		c.logger.Info("teardown verified: no labeled resources remain",
			"release", inv.ReleaseName,
			"namespace", inv.Namespace,
		)
	}

	return result, nil
}

// removeNamespace handles the superseding full-namespace removal path.
func (c *Coordinator) removeNamespace(ctx context.Context, inv config.Invocation, opts Options) (Result, error) {
	var result Result

	if !opts.Force {
		ok, err := c.confirm.Confirm(PromptNamespace, inv.Namespace)
		if err != nil {
			return result, fmt.Errorf("read confirmation: %w", err)
		}
		if !ok {
			c.logger.Info("namespace removal cancelled by user", "namespace", inv.Namespace)
			result.Cancelled = true
			return result, nil
		}
	}

	c.logger.Info("deleting namespace; this removes the release and all secrets in it", "namespace", inv.Namespace)
	if err := c.cluster.DeleteNamespace(ctx, inv.Namespace, c.sweepCap); err != nil {
		return result, fmt.Errorf("delete namespace %s: %w", inv.Namespace, err)
	}

	still, err := c.cluster.NamespaceExists(ctx, inv.Namespace)
	if err != nil {
		c.logger.Warn("post-removal namespace check failed", "namespace", inv.Namespace, "error", err)
		return result, nil
	}
	if still {
		c.logger.Warn("namespace still terminating; deletion will converge in the background", "namespace", inv.Namespace)
		result.Residual = []string{"namespace/" + inv.Namespace}
	}
	return result, nil
}

// sweepResiduals bulk-deletes whatever labeled resources the release
// left behind. Failures are warnings: a re-run converges.
func (c *Coordinator) sweepResiduals(ctx context.Context, inv config.Invocation) {
	c.logger.Info("sweeping residual labeled resources",
		"namespace", inv.Namespace,
		"selector", inv.LabelSelector(),
	)
	if err := c.cluster.DeleteResources(ctx, inv.Namespace, inv.LabelSelector(), c.sweepCap); err != nil {
		c.logger.Warn("residual sweep failed; resources may need manual cleanup", "error", err)
	}
}

// verifyRemoval re-queries for leftovers after the destructive calls.
func (c *Coordinator) verifyRemoval(ctx context.Context, inv config.Invocation) ([]string, error) {
	residual, err := c.cluster.ListResources(ctx, inv.Namespace, inv.LabelSelector())
	if err != nil {
		return nil, err
	}

	status, err := c.pkg.Status(ctx, inv.ReleaseName, inv.Namespace)
	if err != nil {
		return residual, err
	}
	if status.Exists {
		residual = append(residual, "release/"+inv.ReleaseName)
	}
	return residual, nil
}
