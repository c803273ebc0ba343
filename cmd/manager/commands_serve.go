package main

import "github.com/spf13/cobra"

// buildServeCmd creates the "serve" command that starts the daemon.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the manager daemon",
		Long: `Start the manager daemon.

The daemon will:
1. Load configuration from the specified file.
2. Wire the Authorization Engine, Connection Supervisor, and session store.
3. Configure the LLM provider adapter and the closed set of tools.
4. Serve the HTTP API and a Prometheus metrics endpoint.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
