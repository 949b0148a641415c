package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"civlink/internal/netbuf"
	"civlink/util"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

// pair returns a Conn wrapping one end of a loopback TCP connection and
// the raw server end.
func pair(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	d := &TCPDialer{Timeout: time.Second}
	raw, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)

	srv, ok := <-accepted
	require.True(t, ok)

	c := NewConn(raw, time.Second, quietLogger())
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c, srv
}

func waitReady(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ready signal")
	}
}

func TestConn_ReadyAndReadInto(t *testing.T) {
	c, srv := pair(t)

	_, err := srv.Write([]byte("hello"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitForReadyRead(ctx))
	require.Eventually(t, func() bool { return c.BytesAvailable() == 5 }, time.Second, time.Millisecond)

	buf := netbuf.New(64)
	defer buf.Release()
	n, err := c.ReadInto(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf.Bytes()))
	require.Zero(t, c.BytesAvailable())
	require.True(t, c.IsOpen())
}

func TestConn_ReadIntoRespectsRoom(t *testing.T) {
	c, srv := pair(t)

	_, err := srv.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.BytesAvailable() == 10 }, time.Second, time.Millisecond)

	buf := netbuf.New(4)
	defer buf.Release()

	n, err := c.ReadInto(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 6, c.BytesAvailable())

	// Full buffer: nothing moves.
	n, err = c.ReadInto(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	buf.Consume(4)
	n, err = c.ReadInto(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "4567", string(buf.Bytes()))
}

func TestConn_PeerCloseDeliversQueuedBytesFirst(t *testing.T) {
	c, srv := pair(t)

	_, err := srv.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	require.Eventually(t, func() bool { return c.Err() != nil }, 2*time.Second, time.Millisecond)
	require.ErrorIs(t, c.Err(), io.EOF)

	// Still open until the final bytes are consumed.
	require.True(t, c.IsOpen())
	require.Equal(t, 3, c.BytesAvailable())

	buf := netbuf.New(16)
	defer buf.Release()
	n, err := c.ReadInto(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.False(t, c.IsOpen())
}

func TestConn_RearmAfterPartialDrain(t *testing.T) {
	c, srv := pair(t)

	_, err := srv.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.BytesAvailable() == 6 }, time.Second, time.Millisecond)

	// Swallow any pending pulse, then drain only part of the queue.
	select {
	case <-c.Ready():
	default:
	}
	buf := netbuf.New(2)
	defer buf.Release()
	_, err = c.ReadInto(buf)
	require.NoError(t, err)

	c.Rearm()
	waitReady(t, c)
}

func TestConn_WaitForReadyReadContext(t *testing.T) {
	c, _ := pair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.False(t, c.WaitForReadyRead(ctx))
}

func TestConn_Write(t *testing.T) {
	c, srv := pair(t)

	n, err := c.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	got := make([]byte, 4)
	_, err = io.ReadFull(srv, got)
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c, _ := pair(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.False(t, c.IsOpen())
	require.ErrorIs(t, c.Err(), net.ErrClosed)

	buf := netbuf.New(4)
	defer buf.Release()
	_, err := c.ReadInto(buf)
	require.ErrorIs(t, err, net.ErrClosed)
}
