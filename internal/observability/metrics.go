// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	authOperations *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics creates a registry with the Go and process collectors plus the
// tasklist metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		authOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasklist_auth_operations_total",
				Help: "Authentication operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasklist_http_requests_total",
				Help: "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasklist_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	registry.MustRegister(m.authOperations, m.httpRequests, m.httpDuration)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAuthOperation counts one auth service call.
func (m *Metrics) RecordAuthOperation(operation, result string) {
	m.authOperations.WithLabelValues(operation, result).Inc()
}

// ObserveHTTPRequest records one served request. route must be the router
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
