package connsup

import "context"

// Tunnel is a live SSH port-forward handle: remote `localhost:remote_port`
// forwarded to an arbitrary free local port, per §9's local-client
// tunnel note.
type Tunnel interface {
	LocalPort() int
	Close() error
}

// Dialer establishes SSH tunnels. internal/sshtunnel provides the real
// implementation; tests substitute a fake.
type Dialer interface {
	DialSSH(ctx context.Context, params SSHParams) (Tunnel, error)
}
