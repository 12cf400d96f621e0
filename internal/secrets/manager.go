// Package secrets idempotently manages the presence of the fixed set of
// named configuration secrets. Secret content is opaque here: existing
// secrets are never mutated, only created when absent or deleted when
// explicitly requested.
package secrets

import (
	"context"
	"log/slog"

	"github.com/rel-k8s/relctl/internal/config"
)

// Client is the subset of the gateway the manager needs.
type Client interface {
	SecretExists(ctx context.Context, namespace, name string) (bool, error)
	CreateSecret(ctx context.Context, namespace, name string, literals map[string]string) error
	DeleteSecret(ctx context.Context, namespace, name string) error
}

// BatchResult reports the per-secret outcome of one batch operation.
// Failed entries are fatal for that secret only; the batch is best
// effort and never aborts early.
type BatchResult struct {
	// Created and AlreadyPresent partition the Ensure outcomes.
	Created        []string
	AlreadyPresent []string
	// Removed and NotFound partition the Remove outcomes.
	Removed  []string
	NotFound []string
	// Failed maps secret name to the transient API error that stopped it.
	Failed map[string]error
}

// OK reports whether the batch completed without per-secret failures.
func (r BatchResult) OK() bool { return len(r.Failed) == 0 }

// Manager drives secret lifecycle through the gateway.
type Manager struct {
	client Client
	logger *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(client Client, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// Ensure creates each named secret if absent and leaves present ones
// untouched. Idempotent: re-running never issues a second create for a
// secret that already exists.
func (m *Manager) Ensure(ctx context.Context, namespace string, specs []config.SecretSpec) BatchResult {
	result := BatchResult{Failed: map[string]error{}}

	for _, spec := range specs {
		exists, err := m.client.SecretExists(ctx, namespace, spec.Name)
		if err != nil {
			m.logger.Error("secret presence check failed", "secret", spec.Name, "namespace", namespace, "error", err)
			result.Failed[spec.Name] = err
			continue
		}
		if exists {
			m.logger.Info("secret already present, leaving untouched", "secret", spec.Name, "namespace", namespace)
			result.AlreadyPresent = append(result.AlreadyPresent, spec.Name)
			continue
		}

		if err := m.client.CreateSecret(ctx, namespace, spec.Name, spec.Literals); err != nil {
			m.logger.Error("secret create failed", "secret", spec.Name, "namespace", namespace, "error", err)
			result.Failed[spec.Name] = err
			continue
		}
		m.logger.Info("secret created", "secret", spec.Name, "namespace", namespace)
		result.Created = append(result.Created, spec.Name)
	}

	return result
}

// Remove deletes each named secret if present and reports absent ones as
// not-found. Like Ensure, it is best effort across the batch.
func (m *Manager) Remove(ctx context.Context, namespace string, names []string) BatchResult {
	result := BatchResult{Failed: map[string]error{}}

	for _, name := range names {
		exists, err := m.client.SecretExists(ctx, namespace, name)
		if err != nil {
			m.logger.Error("secret presence check failed", "secret", name, "namespace", namespace, "error", err)
			result.Failed[name] = err
			continue
		}
		if !exists {
			m.logger.Info("secret not found, nothing to remove", "secret", name, "namespace", namespace)
			result.NotFound = append(result.NotFound, name)
			continue
		}

		if err := m.client.DeleteSecret(ctx, namespace, name); err != nil {
			m.logger.Error("secret delete failed", "secret", name, "namespace", namespace, "error", err)
			result.Failed[name] = err
			continue
		}
		m.logger.Info("secret removed", "secret", name, "namespace", namespace)
		result.Removed = append(result.Removed, name)
	}

	return result
}
