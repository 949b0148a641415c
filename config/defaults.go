package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the options file, and environment variable loading.

const (
	// DefaultServerHost is used when a server URL carries no host.
	DefaultServerHost = "localhost"

	// DefaultServerPort is the well-known game server port.
	DefaultServerPort = 5556

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds a single connect attempt.  Zero means
	// wait until the transport reports success or failure.
	DefaultConnTimeout = 0 * time.Second

	// DefaultWriteTimeout bounds a single flush of the send buffer.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultReadWait bounds a blocking pump waiting for data.
	DefaultReadWait = 30 * time.Second

	// DefaultAutoconnectInterval is the delay between autoconnect ticks.
	DefaultAutoconnectInterval = 500 * time.Millisecond

	// DefaultAutoconnectAttempts is the autoconnect attempt budget.
	DefaultAutoconnectAttempts = 100

	// DefaultGracePeriod is how long a graceful local server shutdown
	// may take before the process is killed.
	DefaultGracePeriod = 5 * time.Second

	// DefaultOptionsFile is the options file name under the user config dir.
	DefaultOptionsFile = "civlink/options.toml"
)
