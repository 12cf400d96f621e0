package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ReleaseStatus describes the deployed state of a release as reported by
// the package manager. A zero value with Exists=false means the release
// record is absent.
type ReleaseStatus struct {
	Exists   bool
	Revision int
	// Status is the package manager's own status word, e.g. "deployed",
	// "failed", "pending-upgrade".
	Status string
}

// Helm wraps helm CLI execution with optional kube-context selection.
type Helm struct {
	runner      Runner
	kubeContext string
}

// NewHelm constructs a helm client on top of the given runner.
func NewHelm(runner Runner, kubeContext string) *Helm {
	return &Helm{runner: runner, kubeContext: kubeContext}
}

// DependencyUpdate fetches and packages the chart's declared
// sub-components (helm dependency update).
func (h *Helm) DependencyUpdate(ctx context.Context, chartPath string) error {
	return h.run(ctx, "dependency", "update", chartPath)
}

// Lint statically validates the chart against the values overlay.
func (h *Helm) Lint(ctx context.Context, chartPath, valuesFile string) error {
	args := []string{"lint", chartPath}
	args = appendValues(args, valuesFile)
	return h.run(ctx, args...)
}

// Template performs a full client-side render of the chart without
// submitting anything to the cluster, returning the manifests.
func (h *Helm) Template(ctx context.Context, name, chartPath, namespace, valuesFile string) ([]byte, error) {
	args := []string{"template", name, chartPath, "-n", namespace}
	args = appendValues(args, valuesFile)
	return h.output(ctx, args...)
}

// Status queries the release record by exact name. Absence is not an
// error; it is reported through ReleaseStatus.Exists.
func (h *Helm) Status(ctx context.Context, name, namespace string) (ReleaseStatus, error) {
	out, err := h.output(ctx, "list", "-n", namespace, "-a", "-o", "json", "--filter", "^"+name+"$")
	if err != nil {
		return ReleaseStatus{}, err
	}

	var entries []struct {
		Name     string `json:"name"`
		Revision string `json:"revision"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return ReleaseStatus{}, fmt.Errorf("decode helm list output: %w", err)
	}

	for _, e := range entries {
		if e.Name != name {
			continue
		}
		rev, err := strconv.Atoi(e.Revision)
		if err != nil {
			return ReleaseStatus{}, fmt.Errorf("unexpected revision %q for release %s: %w", e.Revision, name, err)
		}
		return ReleaseStatus{Exists: true, Revision: rev, Status: e.Status}, nil
	}
	return ReleaseStatus{}, nil
}

// Install submits the chart as a new release. The call is atomic: helm
// blocks until the workloads are ready or the timeout elapses, and on
// failure deletes the half-created release so no partial state remains
// observable as deployed. Returns the new revision.
func (h *Helm) Install(ctx context.Context, name, chartPath, namespace, valuesFile string, timeout time.Duration) (int, error) {
	args := []string{
		"install", name, chartPath,
		"-n", namespace,
		"--atomic", "--wait",
		"--timeout", timeout.String(),
	}
	args = appendValues(args, valuesFile)
	if err := h.run(ctx, args...); err != nil {
		return 0, err
	}
	return h.revisionAfterApply(ctx, name, namespace)
}

// Upgrade submits the chart as a new revision of an existing release,
// with the same atomicity contract as Install: on failure helm rolls
// back to the last-known-good revision.
func (h *Helm) Upgrade(ctx context.Context, name, chartPath, namespace, valuesFile string, timeout time.Duration) (int, error) {
	args := []string{
		"upgrade", name, chartPath,
		"-n", namespace,
		"--atomic", "--wait",
		"--timeout", timeout.String(),
	}
	args = appendValues(args, valuesFile)
	if err := h.run(ctx, args...); err != nil {
		return 0, err
	}
	return h.revisionAfterApply(ctx, name, namespace)
}

// Uninstall removes the release record and its resources, waiting up to
// the timeout for deletion to complete.
func (h *Helm) Uninstall(ctx context.Context, name, namespace string, timeout time.Duration) error {
	return h.run(ctx,
		"uninstall", name,
		"-n", namespace,
		"--wait",
		"--timeout", timeout.String(),
	)
}

// revisionAfterApply re-queries the release record to report the
// revision produced by an apply that already succeeded.
func (h *Helm) revisionAfterApply(ctx context.Context, name, namespace string) (int, error) {
	status, err := h.Status(ctx, name, namespace)
	if err != nil {
		return 0, fmt.Errorf("query revision after apply: %w", err)
	}
	if !status.Exists {
		return 0, fmt.Errorf("release %s/%s not found after successful apply", namespace, name)
	}
	return status.Revision, nil
}

func (h *Helm) run(ctx context.Context, args ...string) error {
	return h.runner.Run(ctx, nil, "helm", h.withContext(args)...)
}

func (h *Helm) output(ctx context.Context, args ...string) ([]byte, error) {
	return h.runner.Output(ctx, "helm", h.withContext(args)...)
}

func (h *Helm) withContext(args []string) []string {
	if h.kubeContext == "" {
		return args
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, "--kube-context", h.kubeContext)
	return append(out, args...)
}

func appendValues(args []string, valuesFile string) []string {
	if valuesFile != "" {
		args = append(args, "-f", valuesFile)
	}
	return args
}
