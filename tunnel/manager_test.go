package tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/ssh/knownhosts"

	clerr "civlink/internal/errors"
	"civlink/util"
)

type fakeTunnel struct {
	mu         sync.Mutex
	connectErr error
	alive      bool
	keepErr    error
	keepalives int
	closed     int
}

func (f *fakeTunnel) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.alive = true
	return nil
}

func (f *fakeTunnel) Dial(context.Context, string, string) (net.Conn, error) {
	a, b := net.Pipe()
	b.Close()
	return a, nil
}

func (f *fakeTunnel) Keepalive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepalives++
	return f.keepErr
}

func (f *fakeTunnel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	f.closed++
	return nil
}

func (f *fakeTunnel) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

func withHealthInterval(t *testing.T, d time.Duration) {
	t.Helper()
	prev := HealthInterval
	HealthInterval = d
	t.Cleanup(func() { HealthInterval = prev })
}

func TestManager_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	withHealthInterval(t, 5*time.Millisecond)

	ft := &fakeTunnel{}
	m := NewManager(ft, quietLogger())
	require.NoError(t, m.Start(context.Background()))
	require.True(t, m.Alive())

	require.Eventually(t, func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		return ft.keepalives > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	require.False(t, m.Alive())
}

func TestManager_ConnectFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("refused")
	m := NewManager(&fakeTunnel{connectErr: boom}, quietLogger())
	require.ErrorIs(t, m.Start(context.Background()), boom)
	require.NoError(t, m.Stop())
}

func TestManager_KeepaliveFailureClosesTunnel(t *testing.T) {
	defer goleak.VerifyNone(t)
	withHealthInterval(t, 5*time.Millisecond)

	ft := &fakeTunnel{keepErr: errors.New("no reply")}
	m := NewManager(ft, quietLogger())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return !m.Alive() }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())
}

func TestClassifyHandshake(t *testing.T) {
	cfg := &SSHConfig{Host: "gw", Port: 22}

	tests := []struct {
		name   string
		err    error
		wantOp string
		is     error
	}{
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none]"), "auth", clerr.ErrAuthFailed},
		{"hostkey", &knownhosts.KeyError{}, "hostkey", clerr.ErrHostKeyMismatch},
		{"hostkey flattened", errors.New("ssh: handshake failed: knownhosts: key mismatch"), "hostkey", clerr.ErrHostKeyMismatch},
		{"other", io.ErrUnexpectedEOF, "handshake", io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyHandshake(cfg, tt.err)
			var se *clerr.SSHError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tt.wantOp, se.Op)
			require.ErrorIs(t, err, tt.is)
		})
	}
}
