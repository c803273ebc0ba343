// Package connsup implements the Connection Supervisor (§4.5): it keeps
// the desktop companion's channel to the manager daemon alive through
// SSH tunnels or a direct local connection, with keepalive and
// health-checked auto-reconnect, and persists the JWT across
// reconnects.
package connsup

// ProfileKind selects which variant of Profile is populated.
type ProfileKind int

const (
	ProfileSSH ProfileKind = iota
	ProfileLocal
)

// SSHParams describes an SSH tunnel connection target.
type SSHParams struct {
	Server     string
	Username   string
	KeyPath    string // empty means agent/default-key auth
	Port       int
	RemotePort int
}

// LocalParams describes a direct local connection target.
type LocalParams struct {
	Port int
}

// Profile is the sum type `SshTunnel{...} | Local{port}` from §4.2's
// glossary: exactly one of SSH or Local is populated, selected by Kind.
type Profile struct {
	Kind  ProfileKind
	SSH   SSHParams
	Local LocalParams
}
