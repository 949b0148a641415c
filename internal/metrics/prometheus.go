package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civlink/util"
)

const namespace = "civlink"

type counterDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*Collector) float64
}

func newDesc(subsystem, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
}

var descs = []counterDesc{
	{newDesc("connect", "attempts_total", "Transport connect attempts."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.connectAttempts.Load()) }},
	{newDesc("connect", "failures_total", "Transport connects that failed."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.connectFailures.Load()) }},
	{newDesc("session", "active", "1 while a session is in use."), prometheus.GaugeValue,
		func(c *Collector) float64 { return float64(c.sessionActive.Load()) }},
	{newDesc("session", "opened_total", "Sessions opened."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.sessionsTotal.Load()) }},
	{newDesc("session", "established_total", "Joins accepted by the server."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.sessionsEstablished.Load()) }},
	{newDesc("session", "lost_total", "Sessions closed by an error or the server."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.sessionsLost.Load()) }},
	{newDesc("net", "received_bytes_total", "Bytes read from the server."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.bytesIn.Load()) }},
	{newDesc("net", "sent_bytes_total", "Bytes written to the server."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.bytesOut.Load()) }},
	{newDesc("net", "received_packets_total", "Packets dispatched."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.packetsIn.Load()) }},
	{newDesc("net", "sent_packets_total", "Packets queued for sending."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.packetsOut.Load()) }},
	{newDesc("net", "drains_total", "Non-empty dispatch bursts."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.drains.Load()) }},
	{newDesc("autoconnect", "attempts_total", "Autoconnect attempts counted."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.autoconnectAttempts.Load()) }},
	{newDesc("", "errors_total", "Errors recorded."), prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.errorsTotal.Load()) }},
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	for _, d := range descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, d.value(c))
	}
}

// Registry returns a registry holding c plus the Go runtime collectors.
func (c *Collector) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c, collectors.NewGoCollector())
	return reg
}

// Serve exposes c on addr under /metrics until ctx is done.  It returns
// once the listener is bound; the returned address is the bound one.
func Serve(ctx context.Context, addr string, c *Collector, logger *util.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(c.JSON())) //nolint:errcheck
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(sctx) //nolint:errcheck
	}()

	logger.Verbose("metrics listening on http://%s/metrics", ln.Addr())
	return ln.Addr(), nil
}
