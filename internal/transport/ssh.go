package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	clerr "civlink/internal/errors"
	"civlink/internal/retry"
	"civlink/tunnel"
	"civlink/util"
)

// SSHDialer reaches the game server through an SSH gateway, for servers
// that only listen on the gateway's loopback interface.  The gateway
// session is established lazily on the first Dial and reused by every
// later reconnect until Close.
type SSHDialer struct {
	// Backoff schedules gateway setup retries; nil means
	// retry.DefaultBackoff.  Auth and host-key failures are not retried.
	Backoff *retry.Backoff

	manager *tunnel.Manager
	config  *tunnel.SSHConfig
	logger  *util.Logger

	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards through the gateway
// described by cfg.  Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		manager: tunnel.NewManager(tunnel.NewSSHTunnel(cfg, logger), logger),
		config:  cfg,
		logger:  logger,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.manager.Alive() {
		return nil
	}
	if d.connected {
		d.logger.Warn("SSH gateway lost, re-establishing")
		d.manager.Stop() //nolint:errcheck
		d.connected = false
	}

	d.logger.Verbose("establishing SSH tunnel to %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	b := d.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	err := b.Do(ctx, func(attempt int) error {
		err := d.manager.Start(ctx)
		if err == nil {
			return nil
		}
		var se *clerr.SSHError
		if clerr.As(err, &se) && (se.Op == "auth" || se.Op == "hostkey") {
			return retry.Permanent(err)
		}
		d.logger.Verbose("SSH gateway attempt %d failed: %v", attempt, err)
		return err
	})
	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.connected = true
	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.manager.Dial(ctx, network, address)
}

// Close tears down the gateway session.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		return d.manager.Stop()
	}
	return nil
}
