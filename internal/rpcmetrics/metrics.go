// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcmetrics instruments internal/rpcserver with Prometheus
// counters and histograms, exposed over HTTP for scraping. Wiring
// metrics into a server is entirely optional — callers that never
// build a Collector pay no instrumentation cost.
package rpcmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements rpcserver.MetricsSink.
type Collector struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	decodeErrs *prometheus.CounterVec
	registry   *prometheus.Registry
}

// NewCollector builds a Collector registered against a private
// registry, so embedding this package never collides with an
// application's own default registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiberpc_requests_total",
			Help: "Total requests dispatched by transport and outcome.",
		}, []string{"transport", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiberpc_request_duration_seconds",
			Help:    "Request handling latency (service callback plus response emission) by transport.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		decodeErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiberpc_decode_errors_total",
			Help: "Frames dropped or connections torn down due to decode errors, by transport.",
		}, []string{"transport"}),
		registry: reg,
	}

	reg.MustRegister(c.requests, c.latency, c.decodeErrs)
	return c
}

// ObserveRequest records one dispatched request's outcome and the
// wall-clock time spent handling it: the service callback plus
// finalizing and emitting its response.
func (c *Collector) ObserveRequest(transport string, ok bool, elapsedSeconds float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.requests.WithLabelValues(transport, outcome).Inc()
	c.latency.WithLabelValues(transport).Observe(elapsedSeconds)
}

// ObserveDecodeError records one dropped datagram or torn-down stream
// connection caused by a malformed frame.
func (c *Collector) ObserveDecodeError(transport string) {
	c.decodeErrs.WithLabelValues(transport).Inc()
}

// Handler returns the HTTP handler to mount at a metrics exposition
// endpoint (e.g. "/metrics").
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
