package main

import (
	"os"

	"github.com/rel-k8s/relctl/internal/cli"
	"github.com/rel-k8s/relctl/internal/logging"
)

// main is the entry point for the relctl CLI binary.
func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
