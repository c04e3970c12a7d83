// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport runs HTTP/1.1 exchanges over pooled connections keyed by
// virtual host and reports each exchange's outcome exactly once.
package transport

import (
	"crypto/tls"
	"time"
)

const (
	// Default configuration values
	DefaultDialTimeout     = 5 * time.Second
	DefaultIdleTimeout     = 90 * time.Second
	DefaultMaxConnsPerHost = 64
	DefaultMaxIdlePerHost  = 16
)

// Options configures a Pool and the Transport built on it
type Options struct {
	// Endpoint is the host:port to dial for every virtual host. Empty means
	// dial the virtual host itself on port 80, or 443 when Secure.
	// TLS still verifies the virtual host unless TLSConfig.ServerName is set,
	// so set it when the endpoint's certificate names the endpoint.
	Endpoint string

	// Secure wraps connections in TLS
	Secure bool

	// TLSConfig is cloned per connection. ServerName defaults to the virtual host.
	TLSConfig *tls.Config

	// DialTimeout is the timeout for establishing new connections
	DialTimeout time.Duration

	// IdleTimeout is how long an idle connection is kept before it is closed
	IdleTimeout time.Duration

	// MaxConnsPerHost bounds connections in use per virtual host. Acquire
	// waits for a release when the bound is reached. Idle connections do
	// not count against it.
	MaxConnsPerHost int

	// MaxIdlePerHost bounds idle connections kept per virtual host
	MaxIdlePerHost int

	// RequestsPerSecond limits dispatch rate across all hosts. Zero disables it.
	RequestsPerSecond float64

	// Burst is the limiter burst size
	Burst int

	// Metrics receives connection events. Nil disables them.
	Metrics *Metrics
}

// DefaultOptions returns Options with sensible defaults
func DefaultOptions() Options {
	return Options{
		DialTimeout:     DefaultDialTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		MaxIdlePerHost:  DefaultMaxIdlePerHost,
		Burst:           1,
	}
}

// Option is a functional option for configuring pools
type Option func(*Options)

// WithEndpoint sets the dial target override. With TLS, pair it with a
// TLSConfig whose ServerName matches the endpoint's certificate.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// WithTLS enables TLS with the given config, which may be nil
func WithTLS(cfg *tls.Config) Option {
	return func(o *Options) {
		o.Secure = true
		o.TLSConfig = cfg
	}
}

// WithDialTimeout sets the dial timeout
func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = d
	}
}

// WithIdleTimeout sets the idle connection timeout
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.IdleTimeout = d
	}
}

// WithMaxConnsPerHost sets the per-host connection bound
func WithMaxConnsPerHost(n int) Option {
	return func(o *Options) {
		o.MaxConnsPerHost = n
	}
}

// WithMaxIdlePerHost sets the per-host idle connection bound
func WithMaxIdlePerHost(n int) Option {
	return func(o *Options) {
		o.MaxIdlePerHost = n
	}
}

// WithRateLimit limits dispatch to rps requests per second with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.RequestsPerSecond = rps
		o.Burst = burst
	}
}

// WithMetrics sets the connection metrics sink
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

func (o *Options) normalize() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.MaxConnsPerHost <= 0 {
		o.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if o.MaxIdlePerHost < 0 {
		o.MaxIdlePerHost = 0
	}
	o.MaxIdlePerHost = min(o.MaxIdlePerHost, o.MaxConnsPerHost)
	if o.Burst <= 0 {
		o.Burst = 1
	}
}
