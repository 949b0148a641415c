package errors

import (
	"fmt"
	"io"
	"net"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "games.example.org:5556", Err: io.EOF, Retryable: true},
			want: "dial games.example.org:5556: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "write", Addr: "localhost:5556", Err: fmt.Errorf("broken pipe")},
			want: "write localhost:5556: broken pipe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := &ConnectError{Addr: "localhost:5556", Err: Wrap("dial", "localhost:5556", inner)}

	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
	if got := err.Reason(); got != "connection refused" {
		t.Errorf("Reason() = %q", got)
	}
	want := "could not connect to localhost:5556: dial localhost:5556: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFatalError_Format(t *testing.T) {
	exhausted := Fatal("localhost:5556", 100, ErrAutoconnectExhausted)
	if got, want := exhausted.Error(), `failed to contact server "localhost:5556" after 100 attempts`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !IsFatal(exhausted) || !Is(exhausted, ErrAutoconnectExhausted) {
		t.Error("exhausted error should be fatal and match the sentinel")
	}

	failed := Fatal("localhost:5556", 1, fmt.Errorf("%w: refused", ErrAutoconnectFailed))
	if got, want := failed.Error(), `error contacting server "localhost:5556": autoconnect attempt failed: refused`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if IsFatal(fmt.Errorf("plain")) {
		t.Error("plain error is not fatal")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "max-attempts",
				Value:   0,
				Message: "must be positive",
				Hint:    "the default is 100",
			},
			want: "config: --max-attempts=0: must be positive\n  hint: the default is 100",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "server",
				Message: "required with --autoconnect",
			},
			want: "config: --server: required with --autoconnect",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}, false},
		{"dial op error", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("refused")}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrAlreadyConnecting, ErrNotConnected, ErrConnectionClosed,
		ErrDecodeCorrupt, ErrAutoconnectExhausted, ErrAutoconnectFailed,
		ErrTimeout, ErrAuthFailed, ErrHostKeyMismatch,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
