// Package sshtunnel implements the Connection Supervisor's SSH dialer
// (§4.5): given a server/username/key and a remote port, it forwards
// localhost:<remote_port> on the server to an arbitrary free local port.
package sshtunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/nocodo/manager/internal/connsup"
)

// Dialer implements connsup.Dialer over real SSH connections.
type Dialer struct{}

// NewDialer returns a Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// DialSSH establishes the SSH control connection and a local forwarding
// listener. The returned Tunnel's LocalPort is the bound local port.
func (d *Dialer) DialSSH(ctx context.Context, params connsup.SSHParams) (connsup.Tunnel, error) {
	auth, err := authMethod(params.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("sshtunnel: build auth method: %w", err)
	}

	config := &ssh.ClientConfig{
		User: params.Username,
		Auth: []ssh.AuthMethod{auth},
		// Host key verification is not implemented; the desktop
		// companion trusts the operator-provided server address.
		// TODO: pin known_hosts once the config surface carries one.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", params.Server, params.Port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sshtunnel: dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sshtunnel: ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("sshtunnel: listen locally: %w", err)
	}

	t := &Tunnel{
		client:     client,
		listener:   listener,
		localPort:  listener.Addr().(*net.TCPAddr).Port,
		remoteAddr: fmt.Sprintf("localhost:%d", params.RemotePort),
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

// authMethod prefers an explicit private key file; when none is given
// it falls back to the running SSH agent, matching the
// `key_path: Option<String>` contract from the original connection
// manager (no key path means "use whatever identity is already loaded").
func authMethod(keyPath string) (ssh.AuthMethod, error) {
	if keyPath != "" {
		keyBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
		}
		return ssh.PublicKeys(signer), nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("no key_path given and SSH_AUTH_SOCK is not set")
	}
	agentConn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh-agent: %w", err)
	}
	agentClient := agent.NewClient(agentConn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

// Tunnel is a live local-forward: connections accepted on localhost at
// LocalPort are relayed over the SSH connection to remoteAddr.
type Tunnel struct {
	client     *ssh.Client
	listener   net.Listener
	localPort  int
	remoteAddr string

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// LocalPort returns the bound local port callers should target.
func (t *Tunnel) LocalPort() int {
	return t.localPort
}

// Close stops accepting new local connections and tears down the SSH
// connection. Already-open forwarded connections are closed as a side
// effect of the listener and client shutting down.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.listener.Close()
		if clientErr := t.client.Close(); clientErr != nil && err == nil {
			err = clientErr
		}
	})
	t.wg.Wait()
	return err
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		go t.forward(conn)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remoteAddr)
	if err != nil {
		return
	}
	defer remote.Close()

	var copyWG sync.WaitGroup
	copyWG.Add(2)
	go func() {
		defer copyWG.Done()
		io.Copy(remote, local)
	}()
	go func() {
		defer copyWG.Done()
		io.Copy(local, remote)
	}()
	copyWG.Wait()
}
