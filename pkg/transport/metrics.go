// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts connection lifecycle events. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Dialed     prometheus.Counter
	DialErrors prometheus.Counter
	Closed     prometheus.Counter
	Reused     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Dialed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections_dialed_total",
			Help:      "Connections opened by the pool",
		}),
		DialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "dial_errors_total",
			Help:      "Failed connection attempts",
		}),
		Closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections_closed_total",
			Help:      "Connections closed by the pool or by a handler",
		}),
		Reused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections_reused_total",
			Help:      "Acquires served from an idle connection",
		}),
	}
}

// Collectors returns the metrics for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Dialed, m.DialErrors, m.Closed, m.Reused}
}

func (m *Metrics) dialed() {
	if m != nil {
		m.Dialed.Inc()
	}
}

func (m *Metrics) dialError() {
	if m != nil {
		m.DialErrors.Inc()
	}
}

func (m *Metrics) closed() {
	if m != nil {
		m.Closed.Inc()
	}
}

func (m *Metrics) reused() {
	if m != nil {
		m.Reused.Inc()
	}
}
