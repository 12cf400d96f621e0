// Package cli defines the command-line interface for relctl.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rel-k8s/relctl/internal/logging"
)

const (
	// defaultConfigPath is the default path to the project configuration file.
	defaultConfigPath = "relctl.yaml"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath  string
	Namespace   string
	ReleaseName string
	KubeContext string
	LogLevel    logging.Level
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		ConfigPath: defaultConfigPath,
		LogLevel:   logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relctl",
		Short: "relctl manages the lifecycle of a packaged application release on Kubernetes",
		Long: "relctl installs, upgrades, verifies and tears down a Helm-packaged application release, " +
			"driving helm and kubectl as the underlying deployment tools.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := logging.ParseLevel(cmd.Flag("log-level").Value.String())
			opts.LogLevel = level
			logger = logging.NewLogger(os.Stderr, level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "Path to relctl.yaml project file")
	cmd.PersistentFlags().StringVar(&opts.Namespace, "namespace", "", "Target Kubernetes namespace override")
	cmd.PersistentFlags().StringVar(&opts.ReleaseName, "release-name", "", "Release name override")
	cmd.PersistentFlags().StringVar(&opts.KubeContext, "kube-context", "", "Kubeconfig context override")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newInstallCommand(opts),
		newUninstallCommand(opts),
		newPreflightCommand(opts),
		newStatusCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
