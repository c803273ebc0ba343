package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nocodo/manager/internal/connsup"
	"github.com/nocodo/manager/internal/sshtunnel"
)

// connectFlags are the connection parameters every deskctl subcommand
// needs, since each invocation is a separate process with no persistent
// supervisor to reuse (§4.5 describes a single long-lived desktop
// process; deskctl drives one supervisor end to end, per command).
type connectFlags struct {
	local    bool
	localPrt int
	server   string
	username string
	keyPath  string
	port     int
}

func (f *connectFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.local, "local", false, "Connect directly to a locally-running daemon")
	cmd.Flags().IntVar(&f.localPrt, "local-port", 8080, "Local daemon port (with --local)")
	cmd.Flags().StringVar(&f.server, "server", "", "SSH server host")
	cmd.Flags().StringVar(&f.username, "ssh-username", "", "SSH username")
	cmd.Flags().StringVar(&f.keyPath, "key", "", "SSH private key path (empty uses agent/default key)")
	cmd.Flags().IntVar(&f.port, "port", 22, "SSH port")
}

// connect establishes the connection f describes on sup.
func (f *connectFlags) connect(ctx context.Context, sup *connsup.Supervisor) error {
	if f.local {
		return sup.ConnectLocal(ctx, connsup.LocalParams{Port: f.localPrt})
	}
	if f.server == "" || f.username == "" {
		return fmt.Errorf("--server and --ssh-username are required without --local")
	}
	return sup.ConnectSSH(ctx, connsup.SSHParams{
		Server:   f.server,
		Username: f.username,
		KeyPath:  f.keyPath,
		Port:     f.port,
	})
}

func newSupervisor() *connsup.Supervisor {
	return connsup.New(sshtunnel.NewDialer(), slog.Default())
}

func buildConnectCmd() *cobra.Command {
	var flags connectFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Establish a connection to the manager daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := flags.connect(ctx, newSupervisor()); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "connected")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func buildLoginCmd() *cobra.Command {
	var flags connectFlags
	var username, password, fingerprint string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect, then authenticate against the daemon's Request Gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sup := newSupervisor()
			if err := flags.connect(ctx, sup); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			result, err := sup.Login(ctx, username, password, fingerprint)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (token acquired)\n", result.User.Username)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&username, "username", "", "Account username")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&fingerprint, "ssh-fingerprint", "", "SSH host fingerprint presented at connect time")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var flags connectFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Connect and report daemon connectivity and health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sup := newSupervisor()
			if err := flags.connect(ctx, sup); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			healthy := sup.CheckHealth(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "connected=%v auth_required=%v healthy=%v\n",
				sup.IsConnected(), sup.AuthRequired(), healthy)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
