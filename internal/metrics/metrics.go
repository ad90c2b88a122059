// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics defines the gateway's Prometheus instruments on a private
// registry served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the gateway records.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	CacheRequests *prometheus.CounterVec

	AdmissionDenials *prometheus.CounterVec
	GateWait         prometheus.Histogram

	BackendCalls       *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Terminal request outcomes by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_inflight_requests",
			Help: "Requests currently holding a concurrency permit.",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_requests_total",
			Help: "Completion cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		AdmissionDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_admission_denials_total",
			Help: "Admission pipeline denials by error code.",
		}, []string{"code"}),
		GateWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_gate_wait_seconds",
			Help:    "Time spent queued at the concurrency gate.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_backend_calls_total",
			Help: "Model backend invocations by model id.",
		}, []string{"model"}),
		ExtractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_extraction_failures_total",
			Help: "Extraction attempt failures by stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.InFlight, m.CacheRequests,
		m.AdmissionDenials, m.GateWait, m.BackendCalls, m.ExtractionFailures,
	)
	return m
}

// Registry exposes the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one terminal outcome.
func (m *Metrics) ObserveRequest(route, status string, took time.Duration) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(took.Seconds())
}
