// Package gateway provides the narrow, synchronous interface to the
// orchestration platform and package manager. All interaction goes
// through the helm and kubectl binaries; nothing in here retries or
// caches — the remote cluster state is always queried fresh.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes an external tool. It exists so tests can substitute a
// recording fake for real process execution.
type Runner interface {
	// Run executes the tool with the given args, streaming output to the
	// configured writers. A non-nil stdin is piped to the process.
	Run(ctx context.Context, stdin []byte, tool string, args ...string) error
	// Output executes the tool and returns its stdout.
	Output(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// ExecRunner runs tools via exec.CommandContext with an optional
// kubeconfig override in the environment.
type ExecRunner struct {
	// Kubeconfig, when set, is exported as KUBECONFIG for every call.
	Kubeconfig string
	// Stdout and Stderr receive process output; nil falls back to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, stdin []byte, tool string, args ...string) error {
	cmd := r.command(ctx, tool, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v failed: %w", tool, args, err)
	}
	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, tool, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v failed: %w", tool, args, err)
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) command(ctx context.Context, tool string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, tool, args...)

	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if r.Kubeconfig != "" {
		env := os.Environ()
		env = append(env, "KUBECONFIG="+r.Kubeconfig)
		cmd.Env = env
	}

	return cmd
}
