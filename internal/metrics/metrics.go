// Package metrics provides lightweight, lock-free counters for tracking
// the runtime statistics of a civlink session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
//
// A Collector is also a prometheus.Collector; register it with a
// registry and serve it with [Serve].
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a civlink session.
// A nil Collector is safe to use: all methods become no-ops.
type Collector struct {
	connectAttempts     atomic.Int64
	connectFailures     atomic.Int64
	sessionActive       atomic.Int64
	sessionsTotal       atomic.Int64
	sessionsEstablished atomic.Int64
	sessionsLost        atomic.Int64
	bytesIn             atomic.Int64
	bytesOut            atomic.Int64
	packetsIn           atomic.Int64
	packetsOut          atomic.Int64
	drains              atomic.Int64
	autoconnectAttempts atomic.Int64
	errorsTotal         atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectAttempt records the start of a transport connect.
func (c *Collector) ConnectAttempt() {
	if c == nil {
		return
	}
	c.connectAttempts.Add(1)
}

// ConnectFailed records a transport connect that did not complete.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectFailures.Add(1)
}

// SessionOpened marks a session as live.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionActive.Store(1)
	c.sessionsTotal.Add(1)
}

// SessionEstablished records an accepted join.
func (c *Collector) SessionEstablished() {
	if c == nil {
		return
	}
	c.sessionsEstablished.Add(1)
}

// SessionClosed marks the session as torn down.  lost is true when the
// close was not requested locally.
func (c *Collector) SessionClosed(lost bool) {
	if c == nil {
		return
	}
	c.sessionActive.Store(0)
	if lost {
		c.sessionsLost.Add(1)
	}
}

// SessionActive reports whether a session is currently live.
func (c *Collector) SessionActive() bool {
	if c == nil {
		return false
	}
	return c.sessionActive.Load() == 1
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// PacketReceived records one dispatched inbound packet.
func (c *Collector) PacketReceived() {
	if c == nil {
		return
	}
	c.packetsIn.Add(1)
}

// PacketSent records one encoded outbound packet.
func (c *Collector) PacketSent() {
	if c == nil {
		return
	}
	c.packetsOut.Add(1)
}

// Drain records one non-empty dispatch burst.
func (c *Collector) Drain() {
	if c == nil {
		return
	}
	c.drains.Add(1)
}

// ── Autoconnect ──────────────────────────────────────────────────────

// AutoconnectAttempt records one scheduler tick that counted an attempt.
func (c *Collector) AutoconnectAttempt() {
	if c == nil {
		return
	}
	c.autoconnectAttempts.Add(1)
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime              string `json:"uptime"`
	ConnectAttempts     int64  `json:"connect_attempts"`
	ConnectFailures     int64  `json:"connect_failures"`
	SessionActive       bool   `json:"session_active"`
	SessionsTotal       int64  `json:"sessions_total"`
	SessionsEstablished int64  `json:"sessions_established"`
	SessionsLost        int64  `json:"sessions_lost"`
	BytesIn             int64  `json:"bytes_in"`
	BytesOut            int64  `json:"bytes_out"`
	PacketsIn           int64  `json:"packets_in"`
	PacketsOut          int64  `json:"packets_out"`
	Drains              int64  `json:"drains"`
	AutoconnectAttempts int64  `json:"autoconnect_attempts"`
	ErrorsTotal         int64  `json:"errors_total"`
	LastError           string `json:"last_error,omitempty"`
	LastErrorMessage    string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:              time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectAttempts:     c.connectAttempts.Load(),
		ConnectFailures:     c.connectFailures.Load(),
		SessionActive:       c.sessionActive.Load() == 1,
		SessionsTotal:       c.sessionsTotal.Load(),
		SessionsEstablished: c.sessionsEstablished.Load(),
		SessionsLost:        c.sessionsLost.Load(),
		BytesIn:             c.bytesIn.Load(),
		BytesOut:            c.bytesOut.Load(),
		PacketsIn:           c.packetsIn.Load(),
		PacketsOut:          c.packetsOut.Load(),
		Drains:              c.drains.Load(),
		AutoconnectAttempts: c.autoconnectAttempts.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
