// Package session owns the single connection between the client and a
// game server: the transport, the receive and send buffers, the join
// handshake and the request-id bookkeeping.
//
// A Session is not safe for concurrent use.  Every method except
// [Session.InUse] and [Session.Established] must be called from the one
// goroutine that owns it; the transport's reader goroutine only queues
// bytes and pulses [Session.ReadReady].
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"civlink/config"
	"civlink/internal/codec"
	clerr "civlink/internal/errors"
	"civlink/internal/metrics"
	"civlink/internal/netbuf"
	"civlink/internal/transport"
	"civlink/util"
)

// Options wires a Session to its collaborators.  Only Dialer is
// required; Codec defaults to codec.Binary.
type Options struct {
	Dialer  transport.Dialer
	Codec   codec.Codec
	Handler Handler

	Notifier Notifier
	Killer   ServerKiller
	Saver    OptionsSaver

	// Optional integration points for an embedding UI; nil means no-op.
	Governor Governor
	Results  ResultsTracker
	Hooks    Hooks

	// ConnectTimeout bounds the dial; 0 waits for the OS.
	ConnectTimeout time.Duration
	// WriteTimeout bounds each flush of the send buffer.
	WriteTimeout time.Duration
	// BufferLimit caps each of the receive and send buffers.
	BufferLimit int

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Session is the client's connection to one game server.
type Session struct {
	opts    Options
	codec   codec.Codec
	logger  *util.Logger
	metrics *metrics.Collector

	inUse       atomic.Bool
	established atomic.Bool

	conn   *transport.Conn
	recv   *netbuf.Buffer
	send   *netbuf.Buffer
	target config.ServerURL

	lastRequestIDUsed        uint32
	lastProcessedRequestID   uint32
	requestIDOfHandledPacket uint32
	connID                   int16
	serverCapability         string
}

// New returns a disconnected Session.
func New(opts Options) *Session {
	if opts.Codec == nil {
		opts.Codec = codec.Binary{}
	}
	if opts.Governor == nil {
		opts.Governor = nopGovernor{}
	}
	if opts.Killer == nil {
		opts.Killer = nopKiller{}
	}
	if opts.BufferLimit <= 0 {
		opts.BufferLimit = netbuf.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Session{
		opts:    opts,
		codec:   opts.Codec,
		logger:  opts.Logger.With("session"),
		metrics: opts.Metrics,
	}
}

// ── State ────────────────────────────────────────────────────────────

// InUse reports whether a connect attempt or a connection is live.
// Safe to call from any goroutine.
func (s *Session) InUse() bool { return s.inUse.Load() }

// Established reports whether the server accepted the join.  Safe to
// call from any goroutine.
func (s *Session) Established() bool { return s.established.Load() }

// Target returns the server of the current or last connection.
func (s *Session) Target() config.ServerURL { return s.target }

// ConnID returns the connection id assigned in the join reply.
func (s *Session) ConnID() int16 { return s.connID }

// ServerCapability returns the capability string from the join reply.
func (s *Session) ServerCapability() string { return s.serverCapability }

// LastRequestIDUsed returns the id of the last packet sent.
func (s *Session) LastRequestIDUsed() uint32 { return s.lastRequestIDUsed }

// LastProcessedRequestIDSeen returns the last request the server has
// reported finished.  It never exceeds [Session.LastRequestIDUsed].
func (s *Session) LastProcessedRequestIDSeen() uint32 { return s.lastProcessedRequestID }

// RequestIDOfCurrentlyHandledPacket returns the request the server is
// processing right now, or 0.
func (s *Session) RequestIDOfCurrentlyHandledPacket() uint32 { return s.requestIDOfHandledPacket }

// ReadReady pulses when the transport has bytes or has ended.  It is nil
// while there is no transport, which blocks forever in a select.
func (s *Session) ReadReady() <-chan struct{} {
	if s.conn == nil {
		return nil
	}
	return s.conn.Ready()
}

// ── Connect ──────────────────────────────────────────────────────────

// Connect dials u and sends the join request.  It blocks until the dial
// completes or fails.  An empty host means localhost and a non-positive
// port means the default game port.
//
// Connect returns [clerr.ErrAlreadyConnecting] without side effects
// while the session is in use, and a *clerr.ConnectError when the dial
// fails.
func (s *Session) Connect(ctx context.Context, u config.ServerURL) error {
	if !s.inUse.CompareAndSwap(false, true) {
		return clerr.ErrAlreadyConnecting
	}

	u = u.WithDefaults()
	addr := u.Addr()
	s.metrics.ConnectAttempt()
	s.logger.Verbose("connecting to %s", addr)

	dctx := ctx
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	raw, err := s.opts.Dialer.Dial(dctx, "tcp", addr)
	if err != nil {
		s.inUse.Store(false)
		s.metrics.ConnectFailed()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", clerr.ErrTimeout, err)
		}
		return &clerr.ConnectError{Addr: addr, Err: clerr.Wrap("dial", addr, err)}
	}

	s.target = u
	s.metrics.SessionOpened()
	if s.opts.Saver != nil {
		s.opts.Saver.RememberServer(u)
	}

	s.completeHandshake(transport.NewConn(raw, s.opts.WriteTimeout, s.opts.Logger.With("transport")), u.Username)
	if !s.inUse.Load() {
		return &clerr.ConnectError{Addr: addr, Err: clerr.ErrConnectionClosed}
	}
	s.logger.Info("connected to %s", addr)
	return nil
}

// completeHandshake adopts conn and sends the join request.  It does
// not wait for the reply.
func (s *Session) completeHandshake(conn *transport.Conn, username string) {
	s.conn = conn
	s.recv = netbuf.New(s.opts.BufferLimit)
	s.send = netbuf.New(s.opts.BufferLimit)
	s.lastRequestIDUsed = 0
	s.lastProcessedRequestID = 0
	s.requestIDOfHandledPacket = 0
	s.connID = 0
	s.serverCapability = ""

	call(s.opts.Hooks.NetInputRegistered)

	req := &codec.JoinRequest{
		MajorVersion: codec.MajorVersion,
		MinorVersion: codec.MinorVersion,
		PatchVersion: codec.PatchVersion,
		VersionLabel: codec.VersionLabel,
		Capability:   codec.OurCapability,
		Username:     username,
	}
	if err := s.Send(codec.ServerJoinReq, req); err != nil {
		s.logger.Debug("join request not sent: %v", err)
	}
}

// ── Teardown ─────────────────────────────────────────────────────────

// Disconnect closes the session at the user's request.  A second call
// is a no-op.  A local server is asked to stop gracefully only when the
// session was established and graceful is set; otherwise it is killed
// after the socket is closed.
func (s *Session) Disconnect(graceful bool) {
	if !s.inUse.Load() && s.conn == nil {
		return
	}
	force := !graceful || !s.established.Load()

	call(s.opts.Hooks.Flush)
	call(s.opts.Hooks.CancelWaits)

	if !force {
		s.opts.Killer.KillServer(false)
	}
	s.closeSocket()
	if force {
		s.opts.Killer.KillServer(true)
	}
	s.metrics.SessionClosed(false)
	s.notify("Disconnected from server.")

	if s.opts.Saver != nil && s.opts.Saver.SaveOnExit() {
		if err := s.opts.Saver.Save(); err != nil {
			s.logger.Warn("saving options: %v", err)
		}
	}
}

// closeOnError tears the session down after an unrequested loss.  Any
// local server is killed unconditionally.
func (s *Session) closeOnError(reason string) {
	if !s.inUse.Load() && s.conn == nil {
		return
	}
	s.logger.Error("lost connection to server: %s", reason)
	s.metrics.RecordError(reason)

	s.closeSocket()
	s.opts.Killer.KillServer(true)
	s.metrics.SessionClosed(true)
	s.notify(fmt.Sprintf("Lost connection to server (%s)!", reason))
}

// closeSocket releases the transport and buffers without a message.
func (s *Session) closeSocket() {
	if s.conn != nil {
		s.conn.Close() //nolint:errcheck
		s.conn = nil
		call(s.opts.Hooks.NetInputRemoved)
	}
	if s.recv != nil {
		s.recv.Release()
		s.recv = nil
	}
	if s.send != nil {
		s.send.Release()
		s.send = nil
	}
	s.established.Store(false)
	s.inUse.Store(false)
}

func (s *Session) notify(msg string) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(msg)
	}
}

// ── Outbound ─────────────────────────────────────────────────────────

// Queue encodes a packet into the send buffer without writing it.
// Every queued packet takes the next request id.
func (s *Session) Queue(t codec.Type, payload any) error {
	if s.send == nil {
		return clerr.ErrNotConnected
	}
	frame, err := s.codec.Encode(t, payload)
	if err != nil {
		return err
	}
	if len(frame) > s.send.Room() {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	if _, err := s.send.Write(frame); err != nil {
		return fmt.Errorf("queue %s: %w", t, err)
	}
	s.lastRequestIDUsed++
	s.metrics.PacketSent()
	return nil
}

// Send queues a packet and flushes the send buffer.
func (s *Session) Send(t codec.Type, payload any) error {
	if err := s.Queue(t, payload); err != nil {
		return err
	}
	return s.Flush()
}

// Flush writes the send buffer.  A write failure closes the session.
func (s *Session) Flush() error {
	if err := s.writeOut(); err != nil {
		s.closeOnError("write error")
		return err
	}
	return nil
}

func (s *Session) writeOut() error {
	if s.conn == nil || s.send == nil {
		return clerr.ErrNotConnected
	}
	if s.send.Len() == 0 {
		return nil
	}
	n, err := s.conn.Write(s.send.Bytes())
	s.send.Consume(n)
	s.metrics.BytesSent(int64(n))
	if err != nil {
		return clerr.Wrap("write", s.target.Addr(), err)
	}
	return nil
}
