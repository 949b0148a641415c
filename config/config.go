// Package config defines the runtime configuration for civlink and
// provides helpers for parsing server URLs and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	clerr "civlink/internal/errors"
)

// Config holds every tuneable for a single civlink process.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	ServerSpec   string    // raw server URL from flag/positional/env
	Server       ServerURL // parsed ServerSpec, defaults not yet applied
	Username     string    // overrides the username embedded in Server
	Timeout      time.Duration
	WriteTimeout time.Duration

	// ── Autoconnect ──────────────────────────────────────────────────
	Autoconnect    bool
	Interval       time.Duration
	MaxAttempts    int
	RetryTransient bool

	// ── Local server ─────────────────────────────────────────────────
	LocalServerCmd string
	GracePeriod    time.Duration

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Mode ─────────────────────────────────────────────────────────
	Probe  bool // join once, report, and exit
	DryRun bool // print the resolved configuration and exit

	// ── Persistence / observability ──────────────────────────────────
	OptionsPath string
	MetricsAddr string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		WriteTimeout: DefaultWriteTimeout,
		Timeout:      DefaultConnTimeout,
		Interval:     DefaultAutoconnectInterval,
		MaxAttempts:  DefaultAutoconnectAttempts,
		GracePeriod:  DefaultGracePeriod,
	}
}

// Target returns the server to connect to with username and defaults
// applied.
func (c *Config) Target() ServerURL {
	u := c.Server
	if c.Username != "" {
		u.Username = c.Username
	}
	return u.WithDefaults()
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Autoconnect || c.LocalServerCmd != "" {
		if c.Interval <= 0 {
			return &clerr.ConfigError{
				Field:   "interval",
				Value:   c.Interval,
				Message: "must be positive",
				Hint:    fmt.Sprintf("the default is %s", DefaultAutoconnectInterval),
			}
		}
		if c.MaxAttempts <= 0 {
			return &clerr.ConfigError{
				Field:   "max-attempts",
				Value:   c.MaxAttempts,
				Message: "must be positive",
				Hint:    fmt.Sprintf("the default is %d", DefaultAutoconnectAttempts),
			}
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &clerr.ConfigError{
			Field:   "server",
			Value:   c.ServerSpec,
			Message: fmt.Sprintf("port %d out of range 1-65535", c.Server.Port),
		}
	}

	if c.Timeout < 0 {
		return &clerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &clerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
			Hint:    "use -T [user@]host[:port]",
		}
	}

	if c.Probe && (c.Autoconnect || c.LocalServerCmd != "") {
		return &clerr.ConfigError{
			Field:   "probe",
			Value:   true,
			Message: "probe mode connects exactly once",
			Hint:    "drop --autoconnect and --local-server",
		}
	}

	if c.LocalServerCmd != "" && c.TunnelEnabled {
		return &clerr.ConfigError{
			Field:   "local-server",
			Value:   c.LocalServerCmd,
			Message: "a local server cannot be reached through an SSH tunnel",
		}
	}

	return nil
}
