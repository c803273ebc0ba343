// Package main provides the CLI entry point for the manager daemon.
//
// manager orchestrates AI-assisted coding work sessions: it loads LLM
// provider credentials, exposes the closed set of tools, and serves the
// desktop companion over HTTP.
//
// # Basic usage
//
//	manager serve --config manager.yaml
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "manager",
		Short:   "manager - local AI-assisted coding work session daemon",
		Version: version + " (commit: " + commit + ", built: " + date + ")",
		// SilenceUsage keeps usage text from printing on every runtime error.
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
