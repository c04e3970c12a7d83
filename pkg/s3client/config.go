// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"crypto/tls"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3xml"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/signature"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

const (
	DefaultServiceHost = "s3.amazonaws.com"
	DefaultRegion      = "us-east-1"
	DefaultUserAgent   = "zaps3"

	metricsNamespace = "zaps3"
)

// Config holds configuration for a Client.
type Config struct {
	// ServiceHost is the host buckets are addressed under: bucket.ServiceHost.
	ServiceHost string

	// Endpoint overrides the host:port connections are dialed to. The Host
	// header still names the virtual host, and so does TLS verification
	// unless TLSConfig.ServerName is set.
	Endpoint string

	Region string
	Secure bool

	// TLSConfig is used when Secure is set. Nil means the system roots.
	TLSConfig *tls.Config

	Credentials aws.CredentialsProvider

	SignatureVersion signature.Version
	Placement        signature.Placement

	// Decode selects listing fields the decoder skips.
	Decode s3xml.DecodeOptions

	// Pool configures connection pooling and rate limiting. Endpoint,
	// Secure and TLSConfig are taken from the fields above.
	Pool transport.Options

	// MetricsRegisterer receives the client's collectors. Nil disables
	// registration; the metrics are still recorded.
	MetricsRegisterer prometheus.Registerer

	UserAgent string

	// Clock replaces the signing time source.
	Clock func() time.Time
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ServiceHost:      DefaultServiceHost,
		Region:           DefaultRegion,
		SignatureVersion: signature.V4,
		Placement:        signature.PlacementHeader,
		Pool:             transport.DefaultOptions(),
		UserAgent:        DefaultUserAgent,
		Clock:            time.Now,
	}
}

// Option is a functional option for configuring a Client
type Option func(*Config)

// WithServiceHost sets the service host
func WithServiceHost(host string) Option {
	return func(c *Config) {
		c.ServiceHost = host
	}
}

// WithEndpoint sets the dial target override. When Secure and the
// endpoint's certificate names the endpoint rather than bucket.ServiceHost,
// set TLSConfig.ServerName as well.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithRegion sets the signing region
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithTLS enables TLS with the given config, which may be nil
func WithTLS(cfg *tls.Config) Option {
	return func(c *Config) {
		c.Secure = true
		c.TLSConfig = cfg
	}
}

// WithCredentials sets the credentials provider
func WithCredentials(p aws.CredentialsProvider) Option {
	return func(c *Config) {
		c.Credentials = p
	}
}

// WithStaticCredentials uses a fixed access key pair
func WithStaticCredentials(accessKey, secretKey, sessionToken string) Option {
	return func(c *Config) {
		c.Credentials = credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken)
	}
}

// WithSignatureVersion selects V4 or V2 signing
func WithSignatureVersion(v signature.Version) Option {
	return func(c *Config) {
		c.SignatureVersion = v
	}
}

// WithPlacement selects header or query signatures
func WithPlacement(p signature.Placement) Option {
	return func(c *Config) {
		c.Placement = p
	}
}

// WithDecodeOptions sets the listing skip flags
func WithDecodeOptions(o s3xml.DecodeOptions) Option {
	return func(c *Config) {
		c.Decode = o
	}
}

// WithPoolOptions applies transport options to the pool configuration
func WithPoolOptions(opts ...transport.Option) Option {
	return func(c *Config) {
		for _, opt := range opts {
			opt(&c.Pool)
		}
	}
}

// WithMetricsRegisterer registers the client's metrics on reg
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.MetricsRegisterer = reg
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithClock replaces the signing time source
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}
