// Package metrics collects and exposes Prometheus metrics for the daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface the engine and router report through. A
// nil-safe noop is available for tests via Noop.
type Recorder interface {
	RecordSearch(kind string, results int)
	RecordResolution(resourceType string, hit bool)
	RecordTransfer(backendName, outcome string)
	RecordBackendLatency(backendName string, duration time.Duration)
}

// Collector implements Recorder on a Prometheus registry.
type Collector struct {
	searches       *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

// NewCollector builds a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_searches_total",
			Help: "Searches served, labelled by media kind and whether any result matched.",
		}, []string{"kind", "matched"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_resolutions_total",
			Help: "Resource resolution attempts, labelled by resource type and hit.",
		}, []string{"resource_type", "hit"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_transfers_total",
			Help: "Transfer submissions, labelled by backend and outcome.",
		}, []string{"backend", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ferry_backend_latency_seconds",
			Help:    "Latency of backend calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
	}

	reg.MustRegister(
		c.searches,
		c.resolutions,
		c.transfers,
		c.backendLatency,
	)
	return c
}

// RecordSearch records one served search.
func (c *Collector) RecordSearch(kind string, results int) {
	c.searches.WithLabelValues(kind, boolLabel(results > 0)).Inc()
}

// RecordResolution records one resolution attempt for a resource type.
func (c *Collector) RecordResolution(resourceType string, hit bool) {
	c.resolutions.WithLabelValues(resourceType, boolLabel(hit)).Inc()
}

// RecordTransfer records one transfer submission outcome.
func (c *Collector) RecordTransfer(backendName, outcome string) {
	c.transfers.WithLabelValues(backendName, outcome).Inc()
}

// RecordBackendLatency records how long a backend call took.
func (c *Collector) RecordBackendLatency(backendName string, duration time.Duration) {
	c.backendLatency.WithLabelValues(backendName).Observe(duration.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop is a Recorder that discards everything.
type Noop struct{}

func (Noop) RecordSearch(string, int)                   {}
func (Noop) RecordResolution(string, bool)              {}
func (Noop) RecordTransfer(string, string)              {}
func (Noop) RecordBackendLatency(string, time.Duration) {}

var _ Recorder = (*Collector)(nil)
var _ Recorder = Noop{}
