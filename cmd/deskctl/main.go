// Package main provides deskctl, a command-line control surface for the
// desktop companion's Connection Supervisor (§4.5): connecting to a
// manager daemon, either directly or through an SSH tunnel, logging in,
// and checking connection health. It is not the desktop UI shell — that
// surface is out of this core's scope — only the supervisor's CLI
// control plane.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "deskctl",
		Short:        "deskctl - desktop companion connection control",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildConnectCmd(),
		buildLoginCmd(),
		buildStatusCmd(),
	)
	return rootCmd
}
