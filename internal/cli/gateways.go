package cli

import (
	"log/slog"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/gateway"
	"github.com/rel-k8s/relctl/internal/logging"
)

// newGateways constructs the helm and kubectl clients for one invocation,
// with subprocess output forwarded to the structured logger.
func newGateways(inv config.Invocation, logger *slog.Logger) (*gateway.Helm, *gateway.Kubectl) {
	helmRunner := &gateway.ExecRunner{
		Kubeconfig: inv.Kubeconfig,
		Stdout:     logging.NewWriter(logger, logging.LevelDebug, "helm"),
		Stderr:     logging.NewWriter(logger, logging.LevelInfo, "helm"),
	}
	kubectlRunner := &gateway.ExecRunner{
		Kubeconfig: inv.Kubeconfig,
		Stdout:     logging.NewWriter(logger, logging.LevelDebug, "kubectl"),
		Stderr:     logging.NewWriter(logger, logging.LevelInfo, "kubectl"),
	}

	return gateway.NewHelm(helmRunner, inv.Context), gateway.NewKubectl(kubectlRunner, inv.Context)
}
