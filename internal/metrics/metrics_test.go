package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"civlink/util"
)

func TestCollector_SessionLifecycle(t *testing.T) {
	c := New()

	c.ConnectAttempt()
	c.ConnectFailed()
	c.ConnectAttempt()
	c.SessionOpened()
	if !c.SessionActive() {
		t.Fatal("session should be active after SessionOpened")
	}
	c.SessionEstablished()
	c.SessionClosed(true)
	if c.SessionActive() {
		t.Fatal("session should be inactive after SessionClosed")
	}

	snap := c.Snapshot()
	if snap.ConnectAttempts != 2 || snap.ConnectFailures != 1 {
		t.Errorf("connect attempts/failures = %d/%d, want 2/1", snap.ConnectAttempts, snap.ConnectFailures)
	}
	if snap.SessionsTotal != 1 || snap.SessionsEstablished != 1 || snap.SessionsLost != 1 {
		t.Errorf("sessions total/established/lost = %d/%d/%d",
			snap.SessionsTotal, snap.SessionsEstablished, snap.SessionsLost)
	}
}

func TestCollector_Traffic(t *testing.T) {
	c := New()

	c.BytesReceived(1024)
	c.BytesSent(512)
	c.BytesReceived(100)
	c.PacketReceived()
	c.PacketReceived()
	c.PacketSent()
	c.Drain()

	snap := c.Snapshot()
	if snap.BytesIn != 1124 {
		t.Errorf("bytes in = %d, want 1124", snap.BytesIn)
	}
	if snap.BytesOut != 512 {
		t.Errorf("bytes out = %d, want 512", snap.BytesOut)
	}
	if snap.PacketsIn != 2 || snap.PacketsOut != 1 || snap.Drains != 1 {
		t.Errorf("packets in/out drains = %d/%d/%d", snap.PacketsIn, snap.PacketsOut, snap.Drains)
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if msg := c.Snapshot().LastErrorMessage; msg != "second error" {
		t.Errorf("last error = %q", msg)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.SessionOpened()
	c.BytesSent(42)
	c.AutoconnectAttempt()

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if !snap.SessionActive {
		t.Error("JSON session_active = false")
	}
	if snap.BytesOut != 42 {
		t.Errorf("JSON bytes out = %d", snap.BytesOut)
	}
	if snap.AutoconnectAttempts != 1 {
		t.Errorf("JSON autoconnect attempts = %d", snap.AutoconnectAttempts)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectAttempt()
	c.ConnectFailed()
	c.SessionOpened()
	c.SessionEstablished()
	c.SessionClosed(true)
	c.BytesReceived(100)
	c.BytesSent(100)
	c.PacketReceived()
	c.PacketSent()
	c.Drain()
	c.AutoconnectAttempt()
	c.RecordError("test")

	if c.SessionActive() {
		t.Error("nil collector should report inactive")
	}
	if c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}
	if snap := c.Snapshot(); snap.BytesIn != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}

func TestCollector_Gather(t *testing.T) {
	c := New()
	c.BytesReceived(7)
	c.SessionOpened()

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	tests := []struct {
		name string
		want float64
	}{
		{"civlink_net_received_bytes_total", 7},
		{"civlink_session_active", 1},
		{"civlink_session_opened_total", 1},
		{"civlink_errors_total", 0},
	}
	for _, tt := range tests {
		v, ok := got[tt.name]
		if !ok {
			t.Errorf("%s not exported", tt.name)
			continue
		}
		if v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
}

func TestServe(t *testing.T) {
	c := New()
	c.PacketSent()

	logger := util.NewLogger(0)
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := Serve(ctx, "127.0.0.1:0", c, logger)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "civlink_net_sent_packets_total 1") {
		t.Errorf("metrics body missing packet counter:\n%s", body)
	}
}
