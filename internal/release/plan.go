// Package release decides install-vs-upgrade, validates the release
// bundle, and performs the atomic apply.
package release

import "fmt"

// Action is the resolved apply form for one invocation.
type Action string

const (
	// ActionInstall submits the bundle as a new release.
	ActionInstall Action = "install"
	// ActionUpgrade submits the bundle as a new revision of an existing release.
	ActionUpgrade Action = "upgrade"
)

// Stage labels the reconcile step a fatal error belongs to.
type Stage string

const (
	// StageDependencies covers chart dependency resolution.
	StageDependencies Stage = "dependencies"
	// StageValidate covers lint and full-render validation.
	StageValidate Stage = "validate"
	// StageProbe covers the release existence query.
	StageProbe Stage = "probe"
	// StageApply covers the atomic install/upgrade call.
	StageApply Stage = "apply"
)

// StageError is a fatal reconcile error labeled with its failing stage.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// OperationPlan captures the resolved set of actions for one invocation
// before any mutating call is issued. It is in-memory only and lives for
// the duration of a single run.
type OperationPlan struct {
	// Action is install or upgrade, resolved from a fresh existence probe.
	Action Action
	// CurrentRevision is the deployed revision at probe time, 0 when the
	// release does not exist yet.
	CurrentRevision int
	// DryRun renders and prints without issuing any mutating call.
	DryRun bool
	// SkipDependencies bypasses chart dependency resolution.
	SkipDependencies bool
	// SkipSecrets bypasses managed-secret creation.
	SkipSecrets bool
	// Secrets names the managed secrets the run will ensure.
	Secrets []string
}
