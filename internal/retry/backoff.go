// Package retry provides the delay schedules used when (re)connecting
// to a game server or an SSH gateway.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff describes a retry schedule.  A Multiplier of 1 yields the
// fixed-interval schedule used by autoconnect.
type Backoff struct {
	// InitialDelay is the wait after the first attempt (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the wait (default 60s).
	MaxDelay time.Duration
	// Multiplier scales the wait after every attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first;
	// 0 means unlimited.
	MaxAttempts int
	// Jitter adds ±25% randomisation.
	Jitter bool
}

// DefaultBackoff returns the schedule used for SSH gateway setup.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       true,
	}
}

// Fixed returns a schedule that waits interval between each of at most
// attempts tries.
func Fixed(interval time.Duration, attempts int) *Backoff {
	return &Backoff{
		InitialDelay: interval,
		MaxDelay:     interval,
		Multiplier:   1,
		MaxAttempts:  attempts,
	}
}

func (b *Backoff) initial() time.Duration {
	if b.InitialDelay <= 0 {
		return time.Second
	}
	return b.InitialDelay
}

func (b *Backoff) ceiling() time.Duration {
	if b.MaxDelay <= 0 {
		return 60 * time.Second
	}
	return b.MaxDelay
}

func (b *Backoff) multiplier() float64 {
	if b.Multiplier <= 0 {
		return 2.0
	}
	return b.Multiplier
}

// Delay returns the wait that follows the given 1-based attempt,
// without jitter.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.initial()) * math.Pow(b.multiplier(), float64(attempt-1))
	if ceil := float64(b.ceiling()); d > ceil || math.IsInf(d, 0) {
		return b.ceiling()
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has used up the budget.
func (b *Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}

// Do executes fn repeatedly until it succeeds, returns a permanent
// error, or the retry budget (attempts / context) is exhausted.
//
// The attempt parameter passed to fn is 1-based.  To abort retrying,
// wrap the error with [Permanent].
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.Exhausted(attempt) {
			return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxAttempts, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
