package core

import (
	"os"

	"civlink/config"
	"civlink/internal/localserver"
	"civlink/internal/metrics"
	"civlink/internal/transport"
	"civlink/tunnel"
	"civlink/util"
)

// Build constructs the appropriate Mode from the given configuration.
// The options store supplies the remembered server when cfg names
// none; it may be nil.
func Build(cfg *config.Config, opts *config.OptionsStore, logger *util.Logger) (Mode, error) {
	target := resolveTarget(cfg, opts)

	if cfg.Probe {
		return &ProbeMode{
			Dialer:  buildDialer(cfg, logger),
			Target:  target,
			Timeout: cfg.Timeout,
			Logger:  logger,
		}, nil
	}
	return buildPlay(cfg, opts, target, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildPlay(cfg *config.Config, opts *config.OptionsStore, target config.ServerURL, logger *util.Logger) *PlayMode {
	m := &PlayMode{
		Dialer:         buildDialer(cfg, logger),
		Target:         target,
		Options:        opts,
		ConnectTimeout: cfg.Timeout,
		WriteTimeout:   cfg.WriteTimeout,
		Metrics:        metrics.New(),
		MetricsAddr:    cfg.MetricsAddr,
		Logger:         logger,
	}

	if cfg.LocalServerCmd != "" {
		m.LocalServer = localserver.New(cfg.LocalServerCmd, cfg.GracePeriod, logger)
		m.LocalServer.Output = os.Stderr
	}
	if cfg.Autoconnect || m.LocalServer != nil {
		m.Autoconnect = &AutoconnectSettings{
			Interval:       cfg.Interval,
			MaxAttempts:    cfg.MaxAttempts,
			RetryTransient: cfg.RetryTransient,
		}
	}
	return m
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		}, logger)
	}

	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

// resolveTarget picks the server to use.  An explicit server wins,
// then the remembered one; the username falls back to the options
// file and finally to $USER.
func resolveTarget(cfg *config.Config, opts *config.OptionsStore) config.ServerURL {
	u := cfg.Target()
	if cfg.ServerSpec == "" && opts != nil && opts.Get().UsePrevServer {
		u = opts.DefaultServer()
		if cfg.Username != "" {
			u.Username = cfg.Username
		}
		u = u.WithDefaults()
	}
	if u.Username == "" && opts != nil {
		u.Username = opts.Get().DefaultUsername
	}
	if u.Username == "" {
		u.Username = os.Getenv("USER")
	}
	return u
}
