// Package autoconnect retries the startup connection on a fixed
// schedule, typically while a locally launched server is coming up.
//
// Once armed, every failed attempt ends the process unless
// RetryTransient is set, in which case refused or unreachable dials are
// retried until the attempt budget runs out.
package autoconnect

import (
	"context"
	"fmt"
	"time"

	"civlink/config"
	clerr "civlink/internal/errors"
	"civlink/internal/metrics"
	"civlink/internal/retry"
	"civlink/util"
)

// Connector is the part of a session the scheduler drives.
type Connector interface {
	Connect(ctx context.Context, u config.ServerURL) error
	Established() bool
}

// Notifier shows status text to the user.
type Notifier interface {
	Notify(msg string)
}

// Options configure a Scheduler.
type Options struct {
	Interval       time.Duration
	MaxAttempts    int
	RetryTransient bool

	Notifier Notifier
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Scheduler owns the autoconnect state.  It is driven by the caller's
// timer: [Scheduler.Tick] reports how long to wait before the next call.
type Scheduler struct {
	conn           Connector
	schedule       *retry.Backoff
	retryTransient bool
	notifier       Notifier
	logger         *util.Logger
	metrics        *metrics.Collector

	active   bool
	attempts int
	target   config.ServerURL
}

// New returns an inactive Scheduler.
func New(conn Connector, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultAutoconnectInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultAutoconnectAttempts
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Scheduler{
		conn:           conn,
		schedule:       retry.Fixed(opts.Interval, opts.MaxAttempts),
		retryTransient: opts.RetryTransient,
		notifier:       opts.Notifier,
		logger:         opts.Logger.With("autoconnect"),
		metrics:        opts.Metrics,
	}
}

// Start arms the scheduler for u.  No attempt is made until the first
// Tick, which the caller schedules after [Scheduler.Interval].
func (s *Scheduler) Start(u config.ServerURL) {
	s.active = true
	s.attempts = 0
	s.target = u
	if s.notifier != nil {
		s.notifier.Notify(fmt.Sprintf("Auto-connecting to %q every %g second(s) for %d times",
			u.String(), s.Interval().Seconds(), s.schedule.MaxAttempts))
	}
}

// UseNotifier sets n as the notifier unless one was configured.
func (s *Scheduler) UseNotifier(n Notifier) {
	if s.notifier == nil {
		s.notifier = n
	}
}

// Stop disarms the scheduler, e.g. after the user connects or
// disconnects by hand.
func (s *Scheduler) Stop() {
	if s.active {
		s.logger.Verbose("stopped after %d attempt(s)", s.attempts)
	}
	s.active = false
}

// Active reports whether the scheduler is armed.
func (s *Scheduler) Active() bool { return s.active }

// Attempts returns the number of attempts counted since Start.
func (s *Scheduler) Attempts() int { return s.attempts }

// Interval returns the delay before the first tick.
func (s *Scheduler) Interval() time.Duration { return s.schedule.Delay(1) }

// Tick makes one attempt.  A zero delay with a nil error means "do not
// call again".  A non-nil error is always a *clerr.FatalError.
func (s *Scheduler) Tick(ctx context.Context) (time.Duration, error) {
	if !s.active || s.conn.Established() {
		s.active = false
		return 0, nil
	}

	s.attempts++
	s.metrics.AutoconnectAttempt()
	target := s.target.String()

	if s.schedule.Exhausted(s.attempts) {
		s.active = false
		return 0, clerr.Fatal(target, s.attempts, clerr.ErrAutoconnectExhausted)
	}

	err := s.conn.Connect(ctx, s.target)
	if err == nil {
		s.active = false
		s.logger.Verbose("connected on attempt %d", s.attempts)
		return 0, nil
	}

	if s.retryTransient && clerr.IsRetryable(err) {
		s.logger.Verbose("attempt %d: %v", s.attempts, err)
		return s.schedule.Delay(s.attempts), nil
	}

	s.active = false
	return 0, clerr.Fatal(target, s.attempts, fmt.Errorf("%w: %w", clerr.ErrAutoconnectFailed, err))
}
