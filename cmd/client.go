// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/debug"
	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3xml"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/signature"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3client"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
)

type ClientOpts struct {
	Endpoint    string
	ServiceHost string
	Region      string

	Secure   bool
	CAFile   string
	CertFile string
	KeyFile  string
	Insecure bool
	// ServerName is verified instead of the virtual host, typically with
	// Endpoint pointing at a store whose certificate names itself.
	ServerName string

	AccessKey        string
	SecretKey        string
	SessionToken     string
	SignatureVersion string
	Placement        string

	Decode s3xml.DecodeOptions

	MaxConnsPerHost int
	DialTimeout     time.Duration
	RateLimit       float64
	RateBurst       int
	Timeout         time.Duration
}

func loadClientOpts(cmd *cobra.Command) ClientOpts {
	f := NewFlagLoader(cmd)
	return ClientOpts{
		Endpoint:         f.String("endpoint"),
		ServiceHost:      f.String("service_host"),
		Region:           f.String("region"),
		Secure:           f.Bool("secure"),
		CAFile:           f.String("ca_file"),
		CertFile:         f.String("cert_file"),
		KeyFile:          f.String("key_file"),
		Insecure:         f.Bool("insecure"),
		ServerName:       f.String("tls_server_name"),
		AccessKey:        f.String("access_key"),
		SecretKey:        f.String("secret_key"),
		SessionToken:     f.String("session_token"),
		SignatureVersion: f.String("signature_version"),
		Placement:        f.String("placement"),
		Decode: s3xml.DecodeOptions{
			SkipOwner:        f.Bool("skip_owner"),
			SkipStorageClass: f.Bool("skip_storage_class"),
			SkipLastModified: f.Bool("skip_last_modified"),
			SkipETag:         f.Bool("skip_etag"),
		},
		MaxConnsPerHost: f.Int("max_conns_per_host"),
		DialTimeout:     f.Duration("dial_timeout"),
		RateLimit:       f.Float64("rate_limit"),
		RateBurst:       f.Int("rate_burst"),
		Timeout:         f.Duration("timeout"),
	}
}

// clientOptions translates opts into client options. Credentials come from
// the flags when an access key is given, otherwise from the AWS default chain.
func clientOptions(ctx context.Context, opts ClientOpts) ([]s3client.Option, error) {
	version, err := signature.ParseVersion(opts.SignatureVersion)
	if err != nil {
		return nil, err
	}
	placement, err := signature.ParsePlacement(opts.Placement)
	if err != nil {
		return nil, err
	}

	options := []s3client.Option{
		s3client.WithServiceHost(opts.ServiceHost),
		s3client.WithEndpoint(opts.Endpoint),
		s3client.WithRegion(opts.Region),
		s3client.WithSignatureVersion(version),
		s3client.WithPlacement(placement),
		s3client.WithDecodeOptions(opts.Decode),
		s3client.WithPoolOptions(
			transport.WithMaxConnsPerHost(opts.MaxConnsPerHost),
			transport.WithDialTimeout(opts.DialTimeout),
			transport.WithRateLimit(opts.RateLimit, opts.RateBurst),
		),
	}

	if opts.Secure {
		tlsConfig, err := utils.LoadClientTLSConfig(opts.CertFile, opts.KeyFile, opts.CAFile, opts.Insecure)
		if err != nil {
			return nil, err
		}
		tlsConfig.ServerName = opts.ServerName
		options = append(options, s3client.WithTLS(tlsConfig))
	}

	if opts.AccessKey != "" {
		options = append(options, s3client.WithStaticCredentials(opts.AccessKey, opts.SecretKey, opts.SessionToken))
	} else {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS credentials: %w", err)
		}
		options = append(options, s3client.WithCredentials(awsCfg.Credentials))
	}
	return options, nil
}

// newClient builds a client from the command's flags and a context bounded
// by the timeout flag. The caller closes the client and cancels the context.
func newClient(cmd *cobra.Command) (*s3client.Client, context.Context, context.CancelFunc, error) {
	opts := loadClientOpts(cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Component(cmd.Name())
	ctx = logger.WithLogger(ctx, &log)
	cancel := func() {}
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	options, err := clientOptions(ctx, opts)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	// Only exported when the debug server runs; one client per process.
	if debugServer != nil {
		options = append(options, s3client.WithMetricsRegisterer(debug.Registry()))
	}

	client, err := s3client.New(options...)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	log.Debug().
		Str("service_host", opts.ServiceHost).
		Str("endpoint", opts.Endpoint).
		Str("signature_version", opts.SignatureVersion).
		Msg("client ready")
	return client, ctx, cancel, nil
}
