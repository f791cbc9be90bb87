// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing used by the analysis engine and its HTTP surface.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis stages timed by the collector
const (
	StageWalks      = "walks"
	StageEmbeddings = "embeddings"
	StageCommunity  = "communities"
	StageLinks      = "links"
	StageInsights   = "insights"
)

// Collector holds all Prometheus metrics for the service. Each collector
// owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysisRuns  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	GraphNodes    prometheus.Histogram
}

// NewCollector creates a collector with the given metric namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AnalysisRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_runs_total",
				Help:      "Total number of analysis runs",
			},
			[]string{"flavor", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_stage_duration_seconds",
				Help:      "Duration of each analysis stage in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		GraphNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_graph_nodes",
				Help:      "Number of nodes in analyzed graphs",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.AnalysisRuns,
		c.StageDuration,
		c.GraphNodes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRun counts one finished analysis run
func (c *Collector) RecordRun(flavor string, nodes int, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.AnalysisRuns.WithLabelValues(flavor, status).Inc()
	if err == nil {
		c.GraphNodes.Observe(float64(nodes))
	}
}

// TimeStage starts timing a stage; call the returned func when it ends
func (c *Collector) TimeStage(stage string) func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
