// Package preflight verifies tool availability, cluster reachability and
// namespace existence before any mutating action is taken.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// RequiredTools lists the client binaries every relctl invocation needs.
var RequiredTools = []string{"helm", "kubectl"}

// Sentinel failures, matched by callers with errors.Is. Every failure is
// fatal: nothing downstream of a failed check may run.
var (
	ErrMissingTool        = errors.New("required tool missing from PATH")
	ErrClusterUnreachable = errors.New("cluster is not reachable")
	ErrNamespaceAbsent    = errors.New("target namespace does not exist")
)

// Cluster is the subset of the gateway the checker needs. Both calls are
// read-only.
type Cluster interface {
	ClusterReachable(ctx context.Context) error
	NamespaceExists(ctx context.Context, name string) (bool, error)
}

// Checker runs the ordered preflight checks.
type Checker struct {
	cluster Cluster
	logger  *slog.Logger
	// lookPath resolves a binary on PATH; replaced in tests.
	lookPath func(string) (string, error)
}

// NewChecker constructs a Checker over the given cluster gateway.
func NewChecker(cluster Cluster, logger *slog.Logger) *Checker {
	return &Checker{
		cluster:  cluster,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Check runs the checks in order, short-circuiting on the first failure:
// tool resolution, cluster liveness, namespace existence. It performs no
// writes.
func (c *Checker) Check(ctx context.Context, namespace string) error {
	if err := c.CheckConnection(ctx); err != nil {
		return err
	}

	exists, err := c.cluster.NamespaceExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("%w: query namespace %s: %v", ErrClusterUnreachable, namespace, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNamespaceAbsent, namespace)
	}
	c.logger.Debug("preflight namespace check ok", "namespace", namespace)

	return nil
}

// CheckConnection runs only the tool and cluster-liveness checks. The
// teardown path uses it because an absent namespace is a no-op success
// there, not a precondition failure.
func (c *Checker) CheckConnection(ctx context.Context) error {
	for _, tool := range RequiredTools {
		if _, err := c.lookPath(tool); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMissingTool, tool, err)
		}
		c.logger.Debug("preflight tool check ok", "tool", tool)
	}

	if err := c.cluster.ClusterReachable(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrClusterUnreachable, err)
	}
	c.logger.Debug("preflight cluster check ok")

	return nil
}
