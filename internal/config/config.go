// Package config contains the loader and strongly typed model for relctl.yaml
// and the immutable per-invocation configuration derived from it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultNamespace is the namespace used when neither relctl.yaml nor
	// flags provide one.
	DefaultNamespace = "app-system"
	// DefaultReleaseName is the release name used when none is configured.
	DefaultReleaseName = "app"
	// DefaultChartPath is the chart location relative to the project root.
	DefaultChartPath = "./chart"
	// DefaultApplyTimeout bounds the atomic install/upgrade call.
	DefaultApplyTimeout = 10 * time.Minute
	// DefaultWaitTimeout bounds the post-apply readiness poll.
	DefaultWaitTimeout = 5 * time.Minute
	// DefaultSweepTimeout bounds the teardown residual-resource delete.
	DefaultSweepTimeout = 2 * time.Minute
	// DefaultPollInterval is the readiness poll spacing.
	DefaultPollInterval = 5 * time.Second
)

// ManagedSecretNames is the fixed set of configuration secrets whose
// presence this tool manages. Literal values are placeholders unless
// overridden in relctl.yaml; content is never mutated once a secret exists.
var ManagedSecretNames = []string{"primary-config", "secondary-config", "tls-material"}

// ProjectFile mirrors the structure of relctl.yaml.
type ProjectFile struct {
	// Project is the short project name used in defaults and labels.
	Project string `yaml:"project"`
	// EnvFiles lists .env files to load before env overrides apply.
	EnvFiles []string `yaml:"envFiles,omitempty"`
	// Chart is the path to the release bundle (Helm chart directory).
	Chart string `yaml:"chart,omitempty"`
	// Namespace is the default target namespace.
	Namespace string `yaml:"namespace,omitempty"`
	// ReleaseName is the default release name.
	ReleaseName string `yaml:"releaseName,omitempty"`
	// ValuesFile is the default configuration overlay passed to helm.
	ValuesFile string `yaml:"valuesFile,omitempty"`
	// Kubeconfig is the path to the kubeconfig file to use.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	// Context selects the kubeconfig context name.
	Context string `yaml:"context,omitempty"`
	// Secrets overrides the placeholder literals for managed secrets,
	// keyed by secret name then literal key.
	Secrets map[string]map[string]string `yaml:"secrets,omitempty"`
	// Timeouts holds string-form durations for bounded operations.
	Timeouts Timeouts `yaml:"timeouts,omitempty"`
}

// Timeouts holds string-form durations from relctl.yaml. Empty values
// fall back to built-in defaults.
type Timeouts struct {
	// Apply bounds the atomic install/upgrade call (e.g. "10m").
	Apply string `yaml:"apply,omitempty"`
	// Wait bounds the readiness poll after apply (e.g. "5m").
	Wait string `yaml:"wait,omitempty"`
	// Sweep bounds the teardown residual delete (e.g. "2m").
	Sweep string `yaml:"sweep,omitempty"`
}

// envOverrides defines invocation defaults sourced from RELCTL_* env vars.
type envOverrides struct {
	// Namespace is the namespace override from RELCTL_NAMESPACE.
	Namespace string `env:"RELCTL_NAMESPACE"`
	// ReleaseName is the release name override from RELCTL_RELEASE_NAME.
	ReleaseName string `env:"RELCTL_RELEASE_NAME"`
	// Chart is the chart path override from RELCTL_CHART.
	Chart string `env:"RELCTL_CHART"`
	// ValuesFile is the values file override from RELCTL_VALUES_FILE.
	ValuesFile string `env:"RELCTL_VALUES_FILE"`
	// Kubeconfig is the kubeconfig override from RELCTL_KUBECONFIG.
	Kubeconfig string `env:"RELCTL_KUBECONFIG"`
	// Context is the kube context override from RELCTL_CONTEXT.
	Context string `env:"RELCTL_CONTEXT"`
	// ApplyTimeout is the atomic apply timeout from RELCTL_APPLY_TIMEOUT.
	ApplyTimeout string `env:"RELCTL_APPLY_TIMEOUT"`
	// WaitTimeout is the readiness poll timeout from RELCTL_WAIT_TIMEOUT.
	WaitTimeout string `env:"RELCTL_WAIT_TIMEOUT"`
}

// Invocation is the immutable configuration for one relctl run. It is
// constructed once at invocation start and passed explicitly to every
// component; nothing mutates it afterwards.
type Invocation struct {
	// Project is the short project name, used in diagnostics.
	Project string
	// Namespace is the target namespace. The orchestrator never creates
	// it; absence is a preflight failure.
	Namespace string
	// ReleaseName identifies the release within the namespace.
	ReleaseName string
	// ChartPath is the path of the release bundle submitted to helm.
	ChartPath string
	// ValuesFile is the configuration overlay path, empty for chart defaults.
	ValuesFile string
	// Kubeconfig and Context select the cluster connection.
	Kubeconfig string
	Context    string
	// Secrets is the resolved managed-secret set in declaration order.
	Secrets []SecretSpec
	// ApplyTimeout bounds the atomic install/upgrade.
	ApplyTimeout time.Duration
	// WaitTimeout bounds the readiness poll.
	WaitTimeout time.Duration
	// SweepTimeout bounds the teardown residual delete.
	SweepTimeout time.Duration
	// PollInterval is the readiness poll spacing.
	PollInterval time.Duration
}

// SecretSpec names one managed secret and the literals used when it has
// to be created. Literals are opaque to the orchestrator.
type SecretSpec struct {
	Name     string
	Literals map[string]string
}

// SecretNames returns the configured managed-secret names in order.
func (inv Invocation) SecretNames() []string {
	names := make([]string, 0, len(inv.Secrets))
	for _, s := range inv.Secrets {
		names = append(names, s.Name)
	}
	return names
}

// LabelSelector returns the release-identity label selector used to
// discover resources belonging to this release.
func (inv Invocation) LabelSelector() string {
	return "app.kubernetes.io/instance=" + inv.ReleaseName
}

// Overrides carries flag-level values that take precedence over both
// relctl.yaml and RELCTL_* env vars.
type Overrides struct {
	Namespace   string
	ReleaseName string
	ValuesFile  string
	KubeContext string
}

// Load builds the Invocation for one run. Precedence, lowest to highest:
// built-in defaults, relctl.yaml, RELCTL_* env vars, explicit flag
// overrides. A missing project file is not an error; a malformed one is.
func Load(path string, overrides Overrides) (Invocation, error) {
	file, err := readProjectFile(path)
	if err != nil {
		return Invocation{}, err
	}

	if err := loadEnvFiles(filepath.Dir(path), file.EnvFiles); err != nil {
		return Invocation{}, err
	}

	var envVals envOverrides
	if err := envparse.Parse(&envVals); err != nil {
		return Invocation{}, fmt.Errorf("parse RELCTL_* environment overrides: %w", err)
	}

	inv := Invocation{
		Project:      firstNonEmpty(file.Project, DefaultReleaseName),
		Namespace:    firstNonEmpty(overrides.Namespace, envVals.Namespace, file.Namespace, DefaultNamespace),
		ReleaseName:  firstNonEmpty(overrides.ReleaseName, envVals.ReleaseName, file.ReleaseName, DefaultReleaseName),
		ChartPath:    firstNonEmpty(envVals.Chart, file.Chart, DefaultChartPath),
		ValuesFile:   firstNonEmpty(overrides.ValuesFile, envVals.ValuesFile, file.ValuesFile),
		Kubeconfig:   firstNonEmpty(envVals.Kubeconfig, file.Kubeconfig),
		Context:      firstNonEmpty(overrides.KubeContext, envVals.Context, file.Context),
		PollInterval: DefaultPollInterval,
	}

	if inv.ApplyTimeout, err = resolveTimeout(envVals.ApplyTimeout, file.Timeouts.Apply, DefaultApplyTimeout); err != nil {
		return Invocation{}, fmt.Errorf("apply timeout: %w", err)
	}
	if inv.WaitTimeout, err = resolveTimeout(envVals.WaitTimeout, file.Timeouts.Wait, DefaultWaitTimeout); err != nil {
		return Invocation{}, fmt.Errorf("wait timeout: %w", err)
	}
	if inv.SweepTimeout, err = resolveTimeout("", file.Timeouts.Sweep, DefaultSweepTimeout); err != nil {
		return Invocation{}, fmt.Errorf("sweep timeout: %w", err)
	}

	inv.Secrets = resolveSecrets(file.Secrets)

	return inv, nil
}

// readProjectFile parses relctl.yaml, returning a zero value when the
// file does not exist.
func readProjectFile(path string) (ProjectFile, error) {
	var file ProjectFile

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read project file %q: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return file, fmt.Errorf("parse project file %q: %w", path, err)
	}
	return file, nil
}

// loadEnvFiles loads .env files listed in relctl.yaml into the process
// environment without overriding variables already set.
func loadEnvFiles(baseDir string, files []string) error {
	for _, name := range files {
		if strings.TrimSpace(name) == "" {
			continue
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, name)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}

// resolveSecrets materializes the fixed managed-secret set, applying any
// literal overrides from relctl.yaml and falling back to placeholders.
func resolveSecrets(overrides map[string]map[string]string) []SecretSpec {
	specs := make([]SecretSpec, 0, len(ManagedSecretNames))
	for _, name := range ManagedSecretNames {
		literals := overrides[name]
		if len(literals) == 0 {
			literals = map[string]string{"placeholder": "override-me"}
		}
		specs = append(specs, SecretSpec{Name: name, Literals: literals})
	}
	return specs
}

// resolveTimeout picks the first non-empty duration string, falling back
// to a built-in default.
func resolveTimeout(fromEnv, fromFile string, fallback time.Duration) (time.Duration, error) {
	for _, raw := range []string{fromEnv, fromFile} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return d, nil
	}
	return fallback, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
