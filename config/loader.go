package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the CIVLINK_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it BEFORE flag parsing so
// that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CIVLINK_SERVER"); v != "" {
		cfg.ServerSpec = v
	}
	if v := os.Getenv("CIVLINK_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := envInt("CIVLINK_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Autoconnect
	if envBool("CIVLINK_AUTOCONNECT") {
		cfg.Autoconnect = true
	}
	if v := envInt("CIVLINK_AUTOCONNECT_INTERVAL_MS"); v > 0 {
		cfg.Interval = time.Duration(v) * time.Millisecond
	}
	if v := envInt("CIVLINK_AUTOCONNECT_ATTEMPTS"); v > 0 {
		cfg.MaxAttempts = v
	}
	if envBool("CIVLINK_RETRY_TRANSIENT") {
		cfg.RetryTransient = true
	}
	if v := os.Getenv("CIVLINK_LOCAL_SERVER"); v != "" {
		cfg.LocalServerCmd = v
	}

	// SSH tunnel
	if v := os.Getenv("CIVLINK_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("CIVLINK_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("CIVLINK_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("CIVLINK_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("CIVLINK_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("CIVLINK_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	if v := os.Getenv("CIVLINK_OPTIONS"); v != "" {
		cfg.OptionsPath = v
	}
	if v := os.Getenv("CIVLINK_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := envInt("CIVLINK_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
