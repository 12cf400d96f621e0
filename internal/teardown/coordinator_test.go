package teardown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rel-k8s/relctl/internal/config"
	"github.com/rel-k8s/relctl/internal/gateway"
	"github.com/rel-k8s/relctl/internal/secrets"
)

type fakeCluster struct {
	namespaceExists bool
	secretsPresent  map[string]bool
	labeled         []string
	// labeledAfterSweep is returned by ListResources once DeleteResources ran.
	labeledAfterSweep []string

	deleteResourcesCalls int
	deleteNamespaceCalls int
	sweepErr             error

	namespaceDeleted bool
}

func (f *fakeCluster) NamespaceExists(context.Context, string) (bool, error) {
	return f.namespaceExists && !f.namespaceDeleted, nil
}

func (f *fakeCluster) SecretExists(_ context.Context, _, name string) (bool, error) {
	return f.secretsPresent[name], nil
}

func (f *fakeCluster) ListResources(context.Context, string, string) ([]string, error) {
	if f.deleteResourcesCalls > 0 {
		return f.labeledAfterSweep, nil
	}
	return f.labeled, nil
}

func (f *fakeCluster) DeleteResources(context.Context, string, string, time.Duration) error {
	f.deleteResourcesCalls++
	return f.sweepErr
}

func (f *fakeCluster) DeleteNamespace(context.Context, string, time.Duration) error {
	f.deleteNamespaceCalls++
	f.namespaceDeleted = true
	return nil
}

type fakePackage struct {
	exists         bool
	revision       int
	uninstallCalls int
	uninstallErr   error
}

func (f *fakePackage) Status(context.Context, string, string) (gateway.ReleaseStatus, error) {
	if f.uninstallCalls > 0 && f.uninstallErr == nil {
		return gateway.ReleaseStatus{}, nil
	}
	return gateway.ReleaseStatus{Exists: f.exists, Revision: f.revision, Status: "deployed"}, nil
}

func (f *fakePackage) Uninstall(context.Context, string, string, time.Duration) error {
	f.uninstallCalls++
	return f.uninstallErr
}

type fakeRemover struct {
	calls  int
	result secrets.BatchResult
}

func (f *fakeRemover) Remove(context.Context, string, []string) secrets.BatchResult {
	f.calls++
	return f.result
}

// scriptedConfirmer answers every prompt with a fixed reply and records
// which prompt kinds were asked.
type scriptedConfirmer struct {
	answer bool
	asked  []PromptKind
}

func (s *scriptedConfirmer) Confirm(kind PromptKind, _ string) (bool, error) {
	s.asked = append(s.asked, kind)
	return s.answer, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInvocation() config.Invocation {
	return config.Invocation{
		Namespace:    "app-system",
		ReleaseName:  "app",
		ApplyTimeout: time.Minute,
		SweepTimeout: time.Minute,
		Secrets: []config.SecretSpec{
			{Name: "primary-config"},
			{Name: "secondary-config"},
			{Name: "tls-material"},
		},
	}
}

func newCoordinator(cluster *fakeCluster, pkg *fakePackage, remover *fakeRemover, confirm Confirmer) *Coordinator {
	return NewCoordinator(cluster, pkg, remover, confirm, testLogger(), time.Minute)
}

func TestExecuteNamespaceAbsentIsNoop(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: false}
	pkg := &fakePackage{}
	remover := &fakeRemover{}
	c := newCoordinator(cluster, pkg, remover, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)
	assert.False(t, plan.NamespaceExists)

	result, err := c.Execute(context.Background(), inv, plan, Options{RemoveSecrets: true, RemoveNamespace: true})
	require.NoError(t, err)
	assert.True(t, result.NothingToDo)

	// Zero mutating calls were issued.
	assert.Zero(t, pkg.uninstallCalls)
	assert.Zero(t, remover.calls)
	assert.Zero(t, cluster.deleteResourcesCalls)
	assert.Zero(t, cluster.deleteNamespaceCalls)
}

func TestExecuteReleaseAbsentIsNoop(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: true}
	pkg := &fakePackage{exists: false}
	remover := &fakeRemover{}
	c := newCoordinator(cluster, pkg, remover, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), inv, plan, Options{})
	require.NoError(t, err)
	assert.True(t, result.NothingToDo)
	assert.Zero(t, pkg.uninstallCalls)
	assert.Zero(t, cluster.deleteResourcesCalls)

	// The exit condition holds before any destructive call, even when
	// namespace removal was requested.
	result, err = c.Execute(context.Background(), inv, plan, Options{RemoveNamespace: true, Force: true})
	require.NoError(t, err)
	assert.True(t, result.NothingToDo)
	assert.Zero(t, cluster.deleteNamespaceCalls)
}

func TestExecuteDeclinedConfirmation(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: true}
	pkg := &fakePackage{exists: true, revision: 2}
	remover := &fakeRemover{}
	confirm := &scriptedConfirmer{answer: false}
	c := newCoordinator(cluster, pkg, remover, confirm)

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), inv, plan, Options{RemoveSecrets: true})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, []PromptKind{PromptRelease}, confirm.asked)

	assert.Zero(t, pkg.uninstallCalls)
	assert.Zero(t, remover.calls)
	assert.Zero(t, cluster.deleteResourcesCalls)
	assert.Zero(t, cluster.deleteNamespaceCalls)
}

func TestExecuteNamespaceRemovalSupersedes(t *testing.T) {
	cluster := &fakeCluster{
		namespaceExists: true,
		secretsPresent:  map[string]bool{"primary-config": true},
	}
	pkg := &fakePackage{exists: true, revision: 1}
	remover := &fakeRemover{}
	confirm := &scriptedConfirmer{answer: true}
	c := newCoordinator(cluster, pkg, remover, confirm)

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), inv, plan, Options{RemoveSecrets: true, RemoveNamespace: true})
	require.NoError(t, err)
	assert.False(t, result.Cancelled)

	// Namespace deletion is a superset: no discrete uninstall or secret
	// deletes were issued, and the stronger prompt was used.
	assert.Equal(t, 1, cluster.deleteNamespaceCalls)
	assert.Zero(t, pkg.uninstallCalls)
	assert.Zero(t, remover.calls)
	assert.Equal(t, []PromptKind{PromptNamespace}, confirm.asked)
}

func TestExecuteNamespaceStillTerminating(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: true}
	pkg := &fakePackage{exists: true}
	c := newCoordinator(cluster, pkg, &fakeRemover{}, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	// Simulate slow namespace termination.
	c.cluster = &slowNamespaceCluster{fakeCluster: cluster}
	result, err := c.Execute(context.Background(), inv, plan, Options{RemoveNamespace: true, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"namespace/app-system"}, result.Residual)
}

// slowNamespaceCluster reports the namespace as still present after deletion.
type slowNamespaceCluster struct {
	*fakeCluster
}

func (s *slowNamespaceCluster) NamespaceExists(context.Context, string) (bool, error) {
	return true, nil
}

func TestExecuteFullTeardown(t *testing.T) {
	cluster := &fakeCluster{
		namespaceExists: true,
		secretsPresent: map[string]bool{
			"primary-config": true,
			"tls-material":   true,
		},
		labeled: []string{"pod/app-0", "service/app"},
	}
	pkg := &fakePackage{exists: true, revision: 3}
	remover := &fakeRemover{result: secrets.BatchResult{
		Removed:  []string{"primary-config", "tls-material"},
		NotFound: []string{"secondary-config"},
	}}
	c := newCoordinator(cluster, pkg, remover, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, plan.Release.Exists)
	assert.Equal(t, []string{"primary-config", "tls-material"}, plan.SecretsPresent)
	assert.Equal(t, []string{"pod/app-0", "service/app"}, plan.LabeledResources)

	result, err := c.Execute(context.Background(), inv, plan, Options{RemoveSecrets: true, Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, pkg.uninstallCalls)
	assert.Equal(t, 1, remover.calls)
	assert.Equal(t, 1, cluster.deleteResourcesCalls)
	assert.Empty(t, result.Residual)
	assert.Equal(t, []string{"secondary-config"}, result.SecretOutcome.NotFound)
}

func TestExecuteForceSkipsConfirmation(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: true}
	pkg := &fakePackage{exists: true}
	confirm := &scriptedConfirmer{answer: false}
	c := newCoordinator(cluster, pkg, &fakeRemover{}, confirm)

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), inv, plan, Options{Force: true})
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Empty(t, confirm.asked)
	assert.Equal(t, 1, pkg.uninstallCalls)
}

func TestExecuteResidualsReportedNotFatal(t *testing.T) {
	cluster := &fakeCluster{
		namespaceExists:   true,
		labeled:           []string{"pod/app-0"},
		labeledAfterSweep: []string{"pvc/app-data"},
		sweepErr:          fmt.Errorf("some resources timed out"),
	}
	pkg := &fakePackage{exists: true, revision: 1}
	c := newCoordinator(cluster, pkg, &fakeRemover{}, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), inv, plan, Options{Force: true})
	// Sweep failure and residuals are warnings, not errors.
	require.NoError(t, err)
	assert.Equal(t, []string{"pvc/app-data"}, result.Residual)
}

func TestExecuteUninstallFailureIsFatal(t *testing.T) {
	cluster := &fakeCluster{namespaceExists: true}
	pkg := &fakePackage{exists: true, uninstallErr: fmt.Errorf("release locked")}
	remover := &fakeRemover{}
	c := newCoordinator(cluster, pkg, remover, &scriptedConfirmer{answer: true})

	inv := testInvocation()
	plan, err := c.Plan(context.Background(), inv)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), inv, plan, Options{Force: true, RemoveSecrets: true})
	assert.ErrorContains(t, err, "release locked")
	// The batch after the fatal uninstall never ran.
	assert.Zero(t, remover.calls)
	assert.Zero(t, cluster.deleteResourcesCalls)
}
