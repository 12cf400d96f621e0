package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// residualKinds is the set of resource kinds swept during teardown and
// enumerated under the release-identity label.
const residualKinds = "all,configmap,secret,pvc,ingress"

// Kubectl wraps kubectl execution with optional context selection.
type Kubectl struct {
	runner      Runner
	kubeContext string
}

// NewKubectl constructs a kubectl client on top of the given runner.
func NewKubectl(runner Runner, kubeContext string) *Kubectl {
	return &Kubectl{runner: runner, kubeContext: kubeContext}
}

// ClusterReachable issues a lightweight liveness query against the API
// server readiness endpoint.
func (c *Kubectl) ClusterReachable(ctx context.Context) error {
	if _, err := c.output(ctx, "get", "--raw", "/readyz"); err != nil {
		return fmt.Errorf("cluster liveness probe: %w", err)
	}
	return nil
}

// NamespaceExists reports whether the named namespace is present.
func (c *Kubectl) NamespaceExists(ctx context.Context, name string) (bool, error) {
	out, err := c.output(ctx, "get", "namespace", name, "--ignore-not-found", "-o", "name")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// SecretExists reports whether the named secret is present in the namespace.
func (c *Kubectl) SecretExists(ctx context.Context, namespace, name string) (bool, error) {
	out, err := c.output(ctx, "get", "secret", name, "-n", namespace, "--ignore-not-found", "-o", "name")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// CreateSecret creates a generic secret from literal key=value pairs.
// Keys are emitted in sorted order so the issued command is deterministic.
func (c *Kubectl) CreateSecret(ctx context.Context, namespace, name string, literals map[string]string) error {
	args := []string{"create", "secret", "generic", name, "-n", namespace}

	keys := make([]string, 0, len(literals))
	for k := range literals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--from-literal", k+"="+literals[k])
	}

	return c.run(ctx, args...)
}

// DeleteSecret deletes the named secret. Callers are expected to have
// checked presence first; a missing secret is an error here.
func (c *Kubectl) DeleteSecret(ctx context.Context, namespace, name string) error {
	return c.run(ctx, "delete", "secret", name, "-n", namespace)
}

// ListResources enumerates labeled resources in the namespace by name.
func (c *Kubectl) ListResources(ctx context.Context, namespace, labelSelector string) ([]string, error) {
	out, err := c.output(ctx, "get", residualKinds, "-n", namespace, "-l", labelSelector, "-o", "name")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// DeleteResources bulk-deletes labeled resources in the namespace,
// waiting up to the timeout for deletion.
func (c *Kubectl) DeleteResources(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error {
	return c.run(ctx,
		"delete", residualKinds,
		"-n", namespace,
		"-l", labelSelector,
		"--ignore-not-found",
		"--timeout", timeout.String(),
	)
}

// DeleteNamespace removes the namespace and everything in it.
func (c *Kubectl) DeleteNamespace(ctx context.Context, name string, timeout time.Duration) error {
	return c.run(ctx, "delete", "namespace", name, "--timeout", timeout.String())
}

// PodReadiness summarizes pod readiness under a label selector.
type PodReadiness struct {
	Ready int
	Total int
	// NotReady lists the names of pods that are not yet ready.
	NotReady []string
}

// Healthy reports whether every matched pod is ready. An empty match is
// not healthy: the workloads have not appeared yet.
func (p PodReadiness) Healthy() bool {
	return p.Total > 0 && p.Ready == p.Total
}

// WorkloadsReady queries pod readiness under the label selector.
func (c *Kubectl) WorkloadsReady(ctx context.Context, namespace, labelSelector string) (PodReadiness, error) {
	out, err := c.output(ctx, "get", "pods", "-n", namespace, "-l", labelSelector, "-o", "json")
	if err != nil {
		return PodReadiness{}, err
	}

	var podList struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			Status struct {
				Conditions []struct {
					Type   string `json:"type"`
					Status string `json:"status"`
				} `json:"conditions"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(out, &podList); err != nil {
		return PodReadiness{}, fmt.Errorf("decode pod list: %w", err)
	}

	readiness := PodReadiness{Total: len(podList.Items)}
	for _, pod := range podList.Items {
		ready := false
		for _, cond := range pod.Status.Conditions {
			if cond.Type == "Ready" && cond.Status == "True" {
				ready = true
				break
			}
		}
		if ready {
			readiness.Ready++
		} else {
			readiness.NotReady = append(readiness.NotReady, pod.Metadata.Name)
		}
	}
	return readiness, nil
}

func (c *Kubectl) run(ctx context.Context, args ...string) error {
	return c.runner.Run(ctx, nil, "kubectl", c.withContext(args)...)
}

func (c *Kubectl) output(ctx context.Context, args ...string) ([]byte, error) {
	return c.runner.Output(ctx, "kubectl", c.withContext(args)...)
}

func (c *Kubectl) withContext(args []string) []string {
	if c.kubeContext == "" {
		return args
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, "--context", c.kubeContext)
	return append(out, args...)
}
