package tunnel

import (
	"context"
	"net"
	"sync"
	"time"

	"civlink/util"
)

// HealthInterval is how often a running Manager probes its tunnel.
var HealthInterval = 10 * time.Second

// Manager wraps a Tunnel and probes it in the background so a dialer
// can tell a dead gateway apart from a refused server port.
type Manager struct {
	tunnel Tunnel
	logger *util.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a Manager for the given tunnel.
func NewManager(t Tunnel, logger *util.Logger) *Manager {
	return &Manager{tunnel: t, logger: logger}
}

// Start connects the tunnel and begins background health checks.  The
// checks outlive ctx, which only bounds the connect itself.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.tunnel.Connect(ctx); err != nil {
		return err
	}

	hctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.healthLoop(hctx, done)
	return nil
}

// Dial forwards a connection through the managed tunnel.
func (m *Manager) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return m.tunnel.Dial(ctx, network, address)
}

// Alive reports whether the tunnel is still up.
func (m *Manager) Alive() bool { return m.tunnel.IsAlive() }

// Stop ends the health checks and closes the tunnel.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return m.tunnel.Close()
}

func (m *Manager) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(HealthInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if !m.tunnel.IsAlive() {
				m.logger.Error("SSH tunnel connection lost")
				return
			}
			if err := m.tunnel.Keepalive(); err != nil {
				m.logger.Error("SSH tunnel unresponsive: %v", err)
				m.tunnel.Close() //nolint:errcheck
				return
			}
		}
	}
}
