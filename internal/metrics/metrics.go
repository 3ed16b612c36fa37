// Package metrics exposes Prometheus collectors for the HTTP API, the
// analysis engine and the result cache.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prism"

// Collector holds the service metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	analysisDuration *prometheus.HistogramVec
	zonesDetected    *prometheus.CounterVec
	rejectedTraces   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	readingsIngested *prometheus.CounterVec
}

// NewCollector creates a collector and registers every metric, plus the Go
// runtime and process collectors, on a new registry.
//
// Parameters:
//
//	serviceName: Value of the constant "service" label.
//
// Returns:
//
//	*Collector: Initialized collector.
func NewCollector(serviceName string) *Collector {
	constLabels := prometheus.Labels{"service": serviceName}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total count of HTTP requests processed by method, route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "Histogram of HTTP request durations by method and route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "analysis_duration_seconds",
			Help:        "Histogram of trace analysis durations by trace source.",
			Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			ConstLabels: constLabels,
		}, []string{"source"}),
		zonesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "zones_detected_total",
			Help:        "Total zones emitted by the detectors, by zone kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		rejectedTraces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rejected_traces_total",
			Help:        "Total traces rejected by input validation, by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_hits_total",
			Help:        "Total result cache hits by payload kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_misses_total",
			Help:        "Total result cache misses by payload kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "readings_ingested_total",
			Help:        "Total power readings stored, by category and ingest source.",
			ConstLabels: constLabels,
		}, []string{"category", "source"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpDuration,
		c.analysisDuration,
		c.zonesDetected,
		c.rejectedTraces,
		c.cacheHits,
		c.cacheMisses,
		c.readingsIngested,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordAPIRequest counts a finished HTTP request. Route should be the
// route template, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAnalysis observes one successful engine run.
func (c *Collector) RecordAnalysis(source string, duration time.Duration, nightZones, slopeZones int) {
	if c == nil {
		return
	}
	c.analysisDuration.WithLabelValues(source).Observe(duration.Seconds())
	c.zonesDetected.WithLabelValues("night").Add(float64(nightZones))
	c.zonesDetected.WithLabelValues("positive_slope").Add(float64(slopeZones))
}

// RecordRejected counts a trace the engine refused.
func (c *Collector) RecordRejected(reason string) {
	if c == nil {
		return
	}
	c.rejectedTraces.WithLabelValues(reason).Inc()
}

// RecordReadingIngested counts a stored reading.
func (c *Collector) RecordReadingIngested(category, source string) {
	if c == nil {
		return
	}
	c.readingsIngested.WithLabelValues(category, source).Inc()
}

// CacheHit implements cache.Recorder.
func (c *Collector) CacheHit(kind string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(kind).Inc()
}

// CacheMiss implements cache.Recorder.
func (c *Collector) CacheMiss(kind string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(kind).Inc()
}
