package core

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"civlink/config"
	"civlink/internal/codec"
	"civlink/internal/metrics"
	"civlink/internal/transport"
	"civlink/util"
)

// TestPlayMode_QuitSavesOptions runs a full session: connect, /quit,
// and the options file records the server that was used.
func TestPlayMode_QuitSavesOptions(t *testing.T) {
	target := gameServer(t, &codec.JoinReply{YouCanJoin: true})

	path := filepath.Join(t.TempDir(), "options.toml")
	store, err := config.LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	mode := &PlayMode{
		Dialer:       &transport.TCPDialer{Timeout: 2 * time.Second},
		Target:       target,
		Options:      store,
		WriteTimeout: time.Second,
		Metrics:      metrics.New(),
		Logger:       util.NewLogger(0),
		Stdin:        strings.NewReader("/quit\n"),
		Stdout:       &out,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(out.String(), "Disconnected from server.") {
		t.Errorf("output = %q", out.String())
	}

	reloaded, err := config.LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	got := reloaded.Get()
	if got.DefaultServerHost != "127.0.0.1" || got.DefaultServerPort != target.Port {
		t.Errorf("remembered %s:%d, want 127.0.0.1:%d", got.DefaultServerHost, got.DefaultServerPort, target.Port)
	}
}

// TestPlayMode_MetricsEndpoint verifies /stats is served while the
// session runs.
func TestPlayMode_MetricsEndpoint(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	m := metrics.New()
	mode := &PlayMode{
		Dialer:      &transport.TCPDialer{Timeout: time.Second},
		Target:      config.ServerURL{Host: "127.0.0.1", Port: 1},
		Metrics:     m,
		MetricsAddr: addr,
		Logger:      util.NewLogger(0),
		Stdin:       strings.NewReader(""),
		Stdout:      &bytes.Buffer{},
	}
	mode.ConnectTimeout = 200 * time.Millisecond
	mode.Autoconnect = &AutoconnectSettings{Interval: time.Hour, MaxAttempts: 1}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- mode.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + addr + "/stats")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}
