// Package verify polls workload readiness after an apply. Readiness is
// best-effort observability: a timeout is reported, never escalated to a
// failure of the install that already applied atomically.
package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/rel-k8s/relctl/internal/gateway"
)

// WorkloadClient is the subset of the gateway the poller reads from.
type WorkloadClient interface {
	WorkloadsReady(ctx context.Context, namespace, labelSelector string) (gateway.PodReadiness, error)
}

// Result is the terminal outcome of one poll.
type Result struct {
	// Healthy is true when every matched workload reported ready before
	// the deadline.
	Healthy bool
	// TimedOut is true when the deadline elapsed first.
	TimedOut bool
	// Last is the most recent readiness snapshot, for status display.
	Last gateway.PodReadiness
}

// Poller blocks until workloads under a selector are ready or a deadline
// elapses.
type Poller struct {
	client   WorkloadClient
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewPoller constructs a Poller with the given interval and deadline.
func NewPoller(client WorkloadClient, logger *slog.Logger, interval, timeout time.Duration) *Poller {
	return &Poller{client: client, logger: logger, interval: interval, timeout: timeout}
}

// AwaitHealthy polls readiness under the label selector until all
// matched workloads are ready or the deadline elapses. Transient query
// errors are logged and polling continues; the poll itself never fails.
func (p *Poller) AwaitHealthy(ctx context.Context, namespace, labelSelector string) Result {
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.interval)
	defer tick.Stop()

	var last gateway.PodReadiness
	for {
		readiness, err := p.client.WorkloadsReady(ctx, namespace, labelSelector)
		if err != nil {
			p.logger.Warn("readiness query failed, retrying", "namespace", namespace, "error", err)
		} else {
			last = readiness
			p.logger.Info("workload readiness",
				"namespace", namespace,
				"ready", readiness.Ready,
				"total", readiness.Total,
			)
			if readiness.Healthy() {
				return Result{Healthy: true, Last: last}
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Warn("readiness poll cancelled", "namespace", namespace, "error", ctx.Err())
			return Result{TimedOut: true, Last: last}
		case <-deadline.C:
			p.logger.Warn("readiness poll timed out",
				"namespace", namespace,
				"ready", last.Ready,
				"total", last.Total,
				"not_ready", last.NotReady,
			)
			return Result{TimedOut: true, Last: last}
		case <-tick.C:
		}
	}
}
