package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"civlink/config"
	"civlink/internal/autoconnect"
	"civlink/internal/client"
	"civlink/internal/localserver"
	"civlink/internal/metrics"
	"civlink/internal/session"
	"civlink/internal/transport"
	"civlink/util"
)

// AutoconnectSettings arm the startup retry schedule.
type AutoconnectSettings struct {
	Interval       time.Duration
	MaxAttempts    int
	RetryTransient bool
}

// PlayMode connects to a game server and keeps the session alive under
// the console control loop, the default mode.
type PlayMode struct {
	Dialer  transport.Dialer
	Target  config.ServerURL
	Options *config.OptionsStore

	// Autoconnect is nil to connect once at startup.
	Autoconnect *AutoconnectSettings
	LocalServer *localserver.Server

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	Metrics     *metrics.Collector
	MetricsAddr string
	Logger      *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *PlayMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *PlayMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run assembles the session and hands it to the control loop.  The
// transport is closed when Run returns.
func (m *PlayMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if m.MetricsAddr != "" {
		if _, err := metrics.Serve(ctx, m.MetricsAddr, m.Metrics, m.Logger); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
	}

	c := m.assemble()
	return c.Run(ctx)
}

func (m *PlayMode) assemble() *client.Client {
	console := client.NewConsole(m.stdout())

	opts := session.Options{
		Dialer:         m.Dialer,
		Handler:        &client.Handler{Console: console, Logger: m.Logger.With("client")},
		Notifier:       console,
		ConnectTimeout: m.ConnectTimeout,
		WriteTimeout:   m.WriteTimeout,
		Logger:         m.Logger,
		Metrics:        m.Metrics,
	}
	if m.Options != nil {
		opts.Saver = m.Options
	}
	if m.LocalServer != nil {
		opts.Killer = m.LocalServer
	}
	sess := session.New(opts)

	c := &client.Client{
		Session:        sess,
		Target:         m.Target,
		ConnectOnStart: m.Autoconnect == nil,
		Server:         m.LocalServer,
		Console:        console,
		Stdin:          m.stdin(),
		Logger:         m.Logger,
		Metrics:        m.Metrics,
	}
	if a := m.Autoconnect; a != nil {
		c.Autoconnect = autoconnect.New(sess, autoconnect.Options{
			Interval:       a.Interval,
			MaxAttempts:    a.MaxAttempts,
			RetryTransient: a.RetryTransient,
			Notifier:       console,
			Logger:         m.Logger,
			Metrics:        m.Metrics,
		})
	}
	return c
}
