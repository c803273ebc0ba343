package connsup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoConnectionProfile is returned by Reconnect when no
// connect_ssh/connect_local has ever succeeded, and by Login/Register
// when there is no current connection.
var ErrNoConnectionProfile = errors.New("connsup: no connection profile")

const (
	keepaliveInterval  = 60 * time.Second
	healthCheckTimeout = 5 * time.Second
	reconnectThreshold = 2
	reconnectDelay     = 1 * time.Second
)

// healthCheckInterval is the health-check tick; a variable so tests can
// shorten it.
var healthCheckInterval = 30 * time.Second

// Supervisor owns the single exclusively-held connection state described
// in §4.5: the active profile, an optional tunnel handle, a shared
// replaceable API client, a connected flag, a cached JWT, and an
// auth_required flag. Readers of the shared client (GetAPIClient) are
// lock-free in the steady state; the write side (profile/tunnel swap) is
// serialized by mu and taken only on (dis)connect and JWT update.
type Supervisor struct {
	dialer Dialer
	logger *slog.Logger

	mu      sync.Mutex // serializes connect/disconnect/reconnect and tunnel swaps
	profile *Profile
	tunnel  Tunnel

	client       atomic.Pointer[APIClient]
	connected    atomic.Bool
	jwt          atomic.Pointer[string]
	authRequired atomic.Bool

	keepaliveStop chan struct{}
	healthStop    chan struct{}
	wg            sync.WaitGroup
}

// New builds a Supervisor. dialer establishes SSH tunnels for
// ConnectSSH; logger may be nil (slog.Default() is used).
func New(dialer Dialer, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{dialer: dialer, logger: logger}
}

func (s *Supervisor) jwtToken() string {
	if p := s.jwt.Load(); p != nil {
		return *p
	}
	return ""
}

// ConnectSSH establishes an SSH tunnel and a shared API client targeting
// it, seeded with the cached JWT if present, then starts the keepalive
// and health-check background tasks.
func (s *Supervisor) ConnectSSH(ctx context.Context, params SSHParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tunnel, err := s.dialer.DialSSH(ctx, params)
	if err != nil {
		return fmt.Errorf("connsup: dial ssh tunnel: %w", err)
	}

	client := NewAPIClient(fmt.Sprintf("http://localhost:%d", tunnel.LocalPort()))
	if token := s.jwtToken(); token != "" {
		client.SetJWT(token)
	}

	s.profile = &Profile{Kind: ProfileSSH, SSH: params}
	s.tunnel = tunnel
	s.client.Store(client)
	s.connected.Store(true)

	s.startBackgroundTasksLocked(true)
	s.logger.Info("connsup: ssh tunnel established", "server", params.Server, "local_port", tunnel.LocalPort())
	return nil
}

// ConnectLocal connects directly to a manager instance on localhost,
// verifying reachability with a health check before marking connected.
func (s *Supervisor) ConnectLocal(ctx context.Context, params LocalParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := NewAPIClient(fmt.Sprintf("http://localhost:%d", params.Port))
	if token := s.jwtToken(); token != "" {
		client.SetJWT(token)
	}
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("connsup: local health check: %w", err)
	}

	s.profile = &Profile{Kind: ProfileLocal, Local: params}
	s.client.Store(client)
	s.connected.Store(true)

	s.startBackgroundTasksLocked(false)
	s.logger.Info("connsup: connected to local manager", "port", params.Port)
	return nil
}

// Disconnect tears down the tunnel and background tasks and clears the
// connection state. The JWT cache and auth_required flag survive, per
// §4.5's concurrency guarantee.
//
// The shutdown-signal wait happens with mu released: the health-check
// task's reconnect path (reconnectFromHealthCheck) also needs mu, and
// holding it across wg.Wait would deadlock against a task that is mid-
// reconnect when the stop signal fires.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	keepaliveStop := s.keepaliveStop
	healthStop := s.healthStop
	s.keepaliveStop = nil
	s.healthStop = nil
	s.mu.Unlock()

	if keepaliveStop != nil {
		close(keepaliveStop)
	}
	if healthStop != nil {
		close(healthStop)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tunnel != nil {
		if err := s.tunnel.Close(); err != nil {
			s.logger.Warn("connsup: error closing tunnel", "error", err)
		}
		s.tunnel = nil
	}
	s.client.Store(nil)
	s.connected.Store(false)
}

// IsConnected reports the current connected flag.
func (s *Supervisor) IsConnected() bool {
	return s.connected.Load()
}

// AuthRequired reports whether the last health check observed a 401,
// meaning the caller must re-authenticate before reconnection will help.
func (s *Supervisor) AuthRequired() bool {
	return s.authRequired.Load()
}

// GetAPIClient returns the current shared client, or nil if
// disconnected. Lock-free: callers observe either the old or the new
// instance, never torn state.
func (s *Supervisor) GetAPIClient() *APIClient {
	return s.client.Load()
}

// CheckHealth performs a single bounded health check against the
// current client.
func (s *Supervisor) CheckHealth(ctx context.Context) bool {
	if !s.connected.Load() {
		return false
	}
	client := s.client.Load()
	if client == nil {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		s.logger.Warn("connsup: health check failed", "error", err)
		return false
	}
	return true
}

// Reconnect is disconnect() then sleep(1s) then re-connect_* with the
// preserved profile, per §4.5.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	profile := s.profile
	s.mu.Unlock()
	if profile == nil {
		return ErrNoConnectionProfile
	}

	s.Disconnect()
	time.Sleep(reconnectDelay)

	switch profile.Kind {
	case ProfileSSH:
		return s.ConnectSSH(ctx, profile.SSH)
	case ProfileLocal:
		return s.ConnectLocal(ctx, profile.Local)
	default:
		return ErrNoConnectionProfile
	}
}

// Login authenticates against the daemon, mutates the shared client's
// JWT field, and clears auth_required.
func (s *Supervisor) Login(ctx context.Context, username, password, sshFingerprint string) (*LoginResult, error) {
	client := s.client.Load()
	if client == nil {
		return nil, ErrNoConnectionProfile
	}
	result, err := client.Login(ctx, username, password, sshFingerprint)
	if err != nil {
		return nil, err
	}
	token := result.Token
	s.jwt.Store(&token)
	client.SetJWT(token)
	s.authRequired.Store(false)
	return result, nil
}

// Register creates a new account through the daemon.
func (s *Supervisor) Register(ctx context.Context, username, password, email string) (*RegisterResult, error) {
	client := s.client.Load()
	if client == nil {
		return nil, ErrNoConnectionProfile
	}
	result, err := client.Register(ctx, username, password, email)
	if err != nil {
		return nil, err
	}
	s.authRequired.Store(false)
	return result, nil
}

// startBackgroundTasksLocked must be called with mu held.
func (s *Supervisor) startBackgroundTasksLocked(withKeepalive bool) {
	s.healthStop = make(chan struct{})
	s.wg.Add(1)
	go s.runHealthCheck(s.healthStop)

	if withKeepalive {
		s.keepaliveStop = make(chan struct{})
		s.wg.Add(1)
		go s.runKeepalive(s.keepaliveStop)
	} else {
		s.keepaliveStop = nil
	}
}

// runKeepalive ticks every 60s for the lifetime of an SSH connection.
// The SSH library handles protocol-level keepalive on its own; this task
// exists as the lifecycle hook the health-check task shares its shutdown
// pattern with.
func (s *Supervisor) runKeepalive(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.logger.Debug("connsup: keepalive tick")
		case <-stop:
			return
		}
	}
}

// runHealthCheck implements §4.5's reconnect policy: a 401 sets
// auth_required without reconnecting; any other failure or timeout
// increments a counter, and at >=2 consecutive failures the tunnel is
// torn down, re-established from the stored profile, and the JWT
// re-seeded into the replacement client.
func (s *Supervisor) runHealthCheck(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ticker.C:
			if !s.connected.Load() {
				continue
			}
			client := s.client.Load()
			if client == nil {
				continue
			}

			checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			err := client.HealthCheck(checkCtx)
			cancel()

			switch {
			case err == nil:
				consecutiveFailures = 0
			case IsUnauthorized(err):
				s.authRequired.Store(true)
				consecutiveFailures = 0
			default:
				consecutiveFailures++
				s.logger.Warn("connsup: health check failed", "attempt", consecutiveFailures, "error", err)
				if consecutiveFailures >= reconnectThreshold {
					s.reconnectFromHealthCheck(context.Background())
					consecutiveFailures = 0
				}
			}
		case <-stop:
			return
		}
	}
}

// reconnectFromHealthCheck re-establishes the tunnel inline, without
// calling Disconnect/ConnectSSH (which would deadlock waiting on this
// very goroutine via Disconnect's wg.Wait()).
func (s *Supervisor) reconnectFromHealthCheck(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected.Store(false)
	profile := s.profile
	if profile == nil {
		return
	}

	if s.tunnel != nil {
		_ = s.tunnel.Close()
		s.tunnel = nil
	}

	switch profile.Kind {
	case ProfileSSH:
		tunnel, err := s.dialer.DialSSH(ctx, profile.SSH)
		if err != nil {
			s.logger.Error("connsup: reconnect failed", "error", err)
			return
		}
		client := NewAPIClient(fmt.Sprintf("http://localhost:%d", tunnel.LocalPort()))
		if token := s.jwtToken(); token != "" {
			client.SetJWT(token)
		}
		s.tunnel = tunnel
		s.client.Store(client)
		s.connected.Store(true)
		s.logger.Info("connsup: reconnected", "local_port", tunnel.LocalPort())
	case ProfileLocal:
		client := NewAPIClient(fmt.Sprintf("http://localhost:%d", profile.Local.Port))
		if token := s.jwtToken(); token != "" {
			client.SetJWT(token)
		}
		if err := client.HealthCheck(ctx); err != nil {
			s.logger.Error("connsup: reconnect to local manager failed", "error", err)
			return
		}
		s.client.Store(client)
		s.connected.Store(true)
		s.logger.Info("connsup: reconnected to local manager")
	}
}
