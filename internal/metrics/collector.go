package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector handles metrics collection for the firewall session
type Collector struct {
	registry *prometheus.Registry

	// REPL metrics
	commandsTotal *prometheus.CounterVec

	// Firewall metrics
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	allowedIPs         prometheus.Gauge
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalafw_commands_total",
				Help: "Total number of console commands dispatched",
			},
			[]string{"command"},
		),
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalafw_firewall_invocations_total",
				Help: "Total number of packet filter invocations",
			},
			[]string{"kind", "result"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalafw_firewall_invocation_duration_seconds",
				Help:    "Packet filter invocation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		allowedIPs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kalafw_allowed_ips",
				Help: "Current number of allow-listed IP addresses",
			},
		),
	}

	registry.MustRegister(
		collector.commandsTotal,
		collector.invocationsTotal,
		collector.invocationDuration,
		collector.allowedIPs,
	)

	return collector
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ServeHTTP implements http.Handler for metrics endpoint
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// RecordCommand counts a dispatched console command
func (c *Collector) RecordCommand(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// RecordInvocation records one packet filter invocation
func (c *Collector) RecordInvocation(kind string, ok bool, duration time.Duration) {
	c.invocationsTotal.WithLabelValues(kind, result(ok)).Inc()
	c.invocationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetAllowedIPs sets the allow-list size
func (c *Collector) SetAllowedIPs(count int) {
	c.allowedIPs.Set(float64(count))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
