// Package client runs the control loop that owns a session: it reacts
// to inbound data, drives the autoconnect schedule and executes
// console commands, all on one goroutine.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"civlink/config"
	"civlink/internal/autoconnect"
	clerr "civlink/internal/errors"
	"civlink/internal/localserver"
	"civlink/internal/metrics"
	"civlink/internal/session"
	"civlink/util"
)

// Client drives one session from a terminal.
type Client struct {
	Session *session.Session
	Target  config.ServerURL

	// Autoconnect, when set, is armed for Target as Run starts.
	Autoconnect *autoconnect.Scheduler
	// ConnectOnStart makes Run dial Target once when no scheduler is
	// set.
	ConnectOnStart bool
	// Server is started by Run if it is not running yet and stopped
	// when Run returns.
	Server *localserver.Server

	Console *Console
	Stdin   io.Reader // nil disables console commands
	Logger  *util.Logger
	Metrics *metrics.Collector

	timer *time.Timer
	tick  <-chan time.Time
}

// Run services the session until ctx is cancelled, the user quits, or
// autoconnect gives up.  Only the last case returns an error, always a
// *clerr.FatalError; local server start failures are returned as is.
// The session is disconnected gracefully on the way out.
func (c *Client) Run(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = util.NewLogger(0)
	}
	if c.Console == nil {
		c.Console = NewConsole(os.Stdout)
	}
	if c.Autoconnect != nil {
		c.Autoconnect.UseNotifier(c.Console)
	}

	if c.Server != nil && !c.Server.Running() {
		if err := c.Server.Start(); err != nil {
			return fmt.Errorf("starting local server: %w", err)
		}
	}
	defer c.shutdown()

	stop := make(chan struct{})
	defer close(stop)
	var cmds chan command
	if c.Stdin != nil {
		cmds = make(chan command)
		go readLines(c.Stdin, cmds, stop)
	}

	var serverDone <-chan struct{}
	if c.Server != nil {
		serverDone = c.Server.Done()
	}

	switch {
	case c.Autoconnect != nil:
		c.Autoconnect.Start(c.Target)
		c.arm(c.Autoconnect.Interval())
	case c.ConnectOnStart:
		c.connect(ctx, c.Target)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-c.Session.ReadReady():
			c.Session.InputFromServer(ctx)

		case <-c.tick:
			c.tick = nil
			next, err := c.Autoconnect.Tick(ctx)
			if err != nil {
				c.Logger.Error("%v", err)
				return err
			}
			if next > 0 {
				c.arm(next)
			}

		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if c.execute(ctx, cmd) {
				return nil
			}

		case <-serverDone:
			serverDone = nil
			if err := c.Server.Err(); err != nil {
				c.Logger.Warn("local server exited: %v", err)
			} else {
				c.Logger.Verbose("local server exited")
			}
		}
	}
}

// execute runs one console command and reports whether to quit.
func (c *Client) execute(ctx context.Context, cmd command) bool {
	switch cmd.name {
	case "/connect":
		c.stopAutoconnect()
		u, err := resolveTarget(cmd.arg, c.Target)
		if err != nil {
			c.Console.printf("%v", err)
			return false
		}
		c.connect(ctx, u)

	case "/disconnect":
		c.stopAutoconnect()
		if !c.Session.InUse() {
			c.Console.Notify("Not connected.")
			return false
		}
		c.Session.Disconnect(true)

	case "/stats":
		c.Console.Notify(c.Metrics.JSON())

	case "/quit", "/exit":
		return true

	case "/help":
		c.Console.Notify(helpText)

	default:
		c.Console.printf("Unknown command %q, try /help.", cmd.name)
	}
	return false
}

func (c *Client) connect(ctx context.Context, u config.ServerURL) {
	err := c.Session.Connect(ctx, u)
	if err == nil {
		return
	}
	var ce *clerr.ConnectError
	switch {
	case errors.Is(err, clerr.ErrAlreadyConnecting):
		c.Console.Notify("Already connected, use /disconnect first.")
	case errors.As(err, &ce):
		c.Console.printf("Could not connect to %s: %s", u, ce.Reason())
	default:
		c.Console.printf("%v", err)
	}
}

// ── autoconnect timer ────────────────────────────────────────────────

func (c *Client) arm(d time.Duration) {
	c.disarm()
	c.timer = time.NewTimer(d)
	c.tick = c.timer.C
}

func (c *Client) disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.tick = nil
}

func (c *Client) stopAutoconnect() {
	c.disarm()
	if c.Autoconnect != nil {
		c.Autoconnect.Stop()
	}
}

func (c *Client) shutdown() {
	c.stopAutoconnect()
	c.Session.Disconnect(true)
	if c.Server != nil {
		c.Server.KillServer(true)
	}
}
