package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRootCommandWiring(t *testing.T) {
	opts := &Options{ConfigPath: defaultConfigPath}
	root := newRootCommand(opts, testLogger())

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "install")
	assert.Contains(t, names, "uninstall")
	assert.Contains(t, names, "preflight")
	assert.Contains(t, names, "status")

	for _, flag := range []string{"config", "namespace", "release-name", "kube-context", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestInstallCommandFlags(t *testing.T) {
	opts := &Options{}
	cmd := newInstallCommand(opts)

	for _, flag := range []string{"values-file", "skip-secrets", "skip-dependencies", "dry-run"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestUninstallCommandFlags(t *testing.T) {
	opts := &Options{}
	cmd := newUninstallCommand(opts)

	for _, flag := range []string{"remove-secrets", "remove-namespace", "force", "dry-run"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	err := Execute([]string{"frobnicate"}, testLogger())
	assert.Error(t, err)
}

func TestLoggerFromContext(t *testing.T) {
	logger := testLogger()
	ctx := context.WithValue(context.Background(), loggerKey{}, logger)
	assert.Same(t, logger, LoggerFromContext(ctx))

	// Fallbacks never return nil.
	require.NotNil(t, LoggerFromContext(context.Background()))
	require.NotNil(t, LoggerFromContext(nil))
}
