// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"civlink/config"
	"civlink/internal/core"
	"civlink/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X civlink/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives help, version and dry-run output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Execute parses args and runs the selected civlink mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("civlink", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&cfg.ServerSpec, "server", "s", cfg.ServerSpec, "Server URL [civlink://][user@]host[:port]")
	fs.StringVarP(&cfg.Username, "name", "n", cfg.Username, "Username to join with")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect timeout in seconds (0 waits for the OS)")

	// ── autoconnect ──────────────────────────────────────────────
	fs.BoolVarP(&cfg.Autoconnect, "autoconnect", "a", cfg.Autoconnect, "Retry the startup connection on a schedule")
	intervalMs := int(cfg.Interval / time.Millisecond)
	fs.IntVar(&intervalMs, "interval", intervalMs, "Autoconnect interval in milliseconds")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Autoconnect attempt budget")
	fs.BoolVar(&cfg.RetryTransient, "retry-transient", cfg.RetryTransient, "Keep retrying refused or unreachable dials")
	fs.StringVar(&cfg.LocalServerCmd, "local-server", cfg.LocalServerCmd, "Launch CMD as a local server (implies --autoconnect)")

	// ── modes ────────────────────────────────────────────────────
	fs.BoolVar(&cfg.Probe, "probe", false, "Join once, report the reply, and exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate and print the configuration, then exit")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── persistence / output ─────────────────────────────────────
	fs.StringVarP(&cfg.OptionsPath, "options", "o", cfg.OptionsPath, "Options file (default: user config dir)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve /metrics and /stats on ADDR")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "civlink %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.Interval = time.Duration(intervalMs) * time.Millisecond

	// ── positional argument ──────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	if cfg.OptionsPath == "" {
		path, err := config.DefaultOptionsPath()
		if err != nil {
			logger.Warn("options disabled: %v", err)
		}
		cfg.OptionsPath = path
	}
	opts, err := config.LoadOptions(cfg.OptionsPath)
	if err != nil {
		return err
	}

	mode, err := core.Build(cfg, opts, logger)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		printDryRun(cfg, mode)
		return nil
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		if cfg.ServerSpec != "" {
			return fmt.Errorf("server given twice (%q and %q)", cfg.ServerSpec, remaining[0])
		}
		cfg.ServerSpec = remaining[0]
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}

	u, err := config.ParseServerURL(cfg.ServerSpec)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	cfg.Server = u
	return nil
}

func printDryRun(cfg *config.Config, mode core.Mode) {
	w := stdout
	switch m := mode.(type) {
	case *core.PlayMode:
		fmt.Fprintf(w, "mode:        play\n")
		fmt.Fprintf(w, "server:      %s\n", m.Target)
		if a := m.Autoconnect; a != nil {
			fmt.Fprintf(w, "autoconnect: every %s, %d attempt(s), retry transient %t\n",
				a.Interval, a.MaxAttempts, a.RetryTransient)
		}
		if m.LocalServer != nil {
			fmt.Fprintf(w, "local:       %s\n", m.LocalServer.Command)
		}
	case *core.ProbeMode:
		fmt.Fprintf(w, "mode:        probe\n")
		fmt.Fprintf(w, "server:      %s\n", m.Target)
	}
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:      %s\n", util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	if cfg.OptionsPath != "" {
		fmt.Fprintf(w, "options:     %s\n", cfg.OptionsPath)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "metrics:     %s\n", cfg.MetricsAddr)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stdout, `civlink – game server connection client v%s

Usage:
  civlink [options] [server]                  Connect and open the console
  civlink -a --local-server CMD               Launch a server and autoconnect
  civlink --probe [server]                    Check that a server accepts joins
  civlink -T user@gateway [server]            Connect through an SSH tunnel

Options:
`, version)
	fs.SetOutput(stdout)
	fs.PrintDefaults()
	fmt.Fprintf(stdout, `
Console commands:
  /connect [url]  /disconnect  /stats  /quit

Examples:
  civlink alice@game.example.org              Join as alice on port 5556
  civlink -a --max-attempts 20 localhost:5557 Retry startup every 500ms
  civlink --local-server "freeciv-server -p 5556"
  civlink --probe -w 5 game.example.org       Exit status reports the join
`)
}
