// Package errors provides domain-specific error types for civlink.
//
// These types carry structured context (operation, address, retryability,
// autoconnect target) so callers can tell a session-level failure, which
// only resets the connection, from a process-fatal one.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrAlreadyConnecting    = errors.New("connection in progress")
	ErrNotConnected         = errors.New("not connected")
	ErrConnectionClosed     = errors.New("server disconnected")
	ErrDecodeCorrupt        = errors.New("corrupt packet")
	ErrAutoconnectExhausted = errors.New("autoconnect attempts exhausted")
	ErrAutoconnectFailed    = errors.New("autoconnect attempt failed")
	ErrTimeout              = errors.New("operation timed out")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrHostKeyMismatch      = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "dial", "read", "write"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConnectError is returned by a failed connect attempt once the session
// has been reset to not-in-use.  Reason is the human readable text shown
// to the user.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Reason returns the innermost message without the address prefix.
func (e *ConnectError) Reason() string {
	var ne *NetworkError
	if errors.As(e.Err, &ne) {
		return ne.Err.Error()
	}
	return e.Err.Error()
}

// FatalError marks an autoconnect outcome that must terminate the
// process.  Err is ErrAutoconnectExhausted or wraps ErrAutoconnectFailed.
type FatalError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	if errors.Is(e.Err, ErrAutoconnectExhausted) {
		return fmt.Sprintf("failed to contact server %q after %d attempts", e.Target, e.Attempts)
	}
	return fmt.Sprintf("error contacting server %q: %v", e.Target, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Fatal creates a FatalError for the autoconnect target.
func Fatal(target string, attempts int, err error) *FatalError {
	return &FatalError{Target: target, Attempts: attempts, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			// refused / unreachable while a local server is still starting
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
