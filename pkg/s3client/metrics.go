// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

const (
	outcomeSuccess = "success"
	outcomeEmpty   = "empty"
	outcomeError   = "error"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// newMetrics creates the client metrics and registers them, along with the
// transport counters and an acquired-connections gauge, on reg.
func newMetrics(reg prometheus.Registerer, tm *transport.Metrics, acquired func() float64) *metrics {
	factory := promauto.With(reg)
	m := &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Completed requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to completion",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"operation"}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "client",
		Name:      "acquired_connections",
		Help:      "Connections currently checked out of the pool",
	}, acquired)

	if reg != nil {
		for _, c := range tm.Collectors() {
			reg.MustRegister(c)
		}
	}
	return m
}

func (m *metrics) observe(op string, start time.Time, outcome string) {
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
