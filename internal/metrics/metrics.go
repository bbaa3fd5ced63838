// Package metrics exposes Prometheus counters and histograms for the
// gateway's internal operation, served on a separate ambient path from
// the business-facing /api/v1/metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts routing decisions by chosen cluster and
	// whether the decision came from cache.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyrasql_decisions_total",
		Help: "Routing decisions made, by cluster and cache status.",
	}, []string{"cluster", "cached"})

	// ProbeDuration measures IO probe latency per cluster and outcome
	// source (io vs distributed_plan fallback).
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dyrasql_probe_duration_seconds",
		Help:    "Latency of IO probe calls against a backend cluster.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cluster", "source"})

	// ProbeFailuresTotal counts probe attempts that produced no usable
	// estimate, by reason.
	ProbeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dyrasql_probe_failures_total",
		Help: "Probe attempts that failed or were skipped, by reason.",
	}, []string{"reason"})

	// ProxyForwardDuration measures how long a statement submission
	// takes end to end against the chosen backend.
	ProxyForwardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dyrasql_proxy_forward_duration_seconds",
		Help:    "Latency of proxying a statement submission to a backend cluster.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cluster"})

	// TrackerSize reports how many query IDs are tracked, sampled each
	// time a statement submission records a query ID; evictions between
	// submissions show up only at the next sample.
	TrackerSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dyrasql_tracker_size",
		Help: "Number of query IDs currently mapped to a cluster.",
	})

	// HistoryStoreErrorsTotal counts history store writes (decision
	// persistence and metrics recording) that failed and were logged
	// rather than surfaced to a client.
	HistoryStoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dyrasql_history_store_errors_total",
		Help: "History store operations that failed and were degraded silently.",
	})
)
