package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"civlink/config"
	"civlink/internal/codec"
	clerr "civlink/internal/errors"
	"civlink/internal/session"
	"civlink/internal/transport"
	"civlink/util"
)

// ProbeResult is the outcome of one join attempt.
type ProbeResult struct {
	Target     config.ServerURL
	Accepted   bool
	Message    string
	Capability string
	ConnID     int16
	Elapsed    time.Duration
}

// ProbeMode connects, waits for the join reply, reports it and
// disconnects.  It exits non-zero when the server cannot be reached or
// refuses the join.
type ProbeMode struct {
	Dialer  transport.Dialer
	Target  config.ServerURL
	Timeout time.Duration
	Logger  *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ProbeMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run probes Target.  The underlying transport is closed when Run
// returns.
func (m *ProbeMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	timeout := m.Timeout
	if timeout == 0 {
		timeout = config.DefaultReadWait
	}

	m.Logger.Verbose("probing %s (timeout %s)", m.Target, timeout)

	res, err := Probe(ctx, m.Dialer, m.Target, timeout, m.Logger)
	if err != nil {
		return err
	}

	out := m.stdout()
	if !res.Accepted {
		fmt.Fprintf(out, "%s rejected the join: %s\n", res.Target, res.Message)
		return fmt.Errorf("join rejected by %s", res.Target)
	}
	fmt.Fprintf(out, "%s accepted, connection %d, %s\n", res.Target, res.ConnID, res.Elapsed.Round(time.Millisecond))
	if res.Capability != "" {
		fmt.Fprintf(out, "  capability: %s\n", res.Capability)
	}
	if res.Message != "" {
		fmt.Fprintf(out, "  message: %s\n", res.Message)
	}
	return nil
}

// Probe opens a throwaway session to u and blocks until the server
// answers the join request, the connection is lost, or timeout
// elapses.
func Probe(ctx context.Context, dialer transport.Dialer, u config.ServerURL, timeout time.Duration, logger *util.Logger) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reply *codec.JoinReply
	sess := session.New(session.Options{
		Dialer: dialer,
		Handler: session.HandlerFunc(func(_ *session.Session, pkt codec.Packet) {
			if p, ok := pkt.Payload.(*codec.JoinReply); ok {
				reply = p
			}
		}),
		Logger: logger,
	})

	started := time.Now()
	if err := sess.Connect(ctx, u); err != nil {
		return ProbeResult{}, err
	}
	defer sess.Disconnect(true)

	for reply == nil && sess.InUse() {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("%w: no join reply from %s", clerr.ErrTimeout, u.WithDefaults())
		}
		sess.Dispatch(sess.Pump(ctx, true))
	}
	if reply == nil {
		return ProbeResult{}, fmt.Errorf("%s: %w", u.WithDefaults(), clerr.ErrConnectionClosed)
	}

	return ProbeResult{
		Target:     sess.Target(),
		Accepted:   reply.YouCanJoin,
		Message:    reply.Message,
		Capability: reply.Capability,
		ConnID:     reply.ConnID,
		Elapsed:    time.Since(started),
	}, nil
}
