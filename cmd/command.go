// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/debug"
	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var debugServer *debug.Server

var rootCmd = &cobra.Command{
	Use:   "zaps3",
	Short: "zaps3 - an asynchronous S3 client",
	Long: `zaps3 talks to S3-compatible object stores over a pooled,
rate-limited connection layer. It puts, gets, deletes, lists and
presigns objects addressed as s3://bucket/key.`,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
	PersistentPostRun: shutdown,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")

	f.String("endpoint", "", "host:port to dial for every bucket (default: the bucket's virtual host)")
	f.String("service_host", "s3.amazonaws.com", "Host buckets are addressed under as bucket.service_host")
	f.String("region", "us-east-1", "Signing region")
	f.Bool("secure", false, "Use TLS")
	f.String("ca_file", "", "CA bundle used to verify the store")
	f.String("cert_file", "", "Client certificate for mTLS")
	f.String("key_file", "", "Client key for mTLS")
	f.Bool("insecure", false, "Skip TLS certificate verification")
	f.String("tls_server_name", "", "Name to verify the store's certificate against (default: the bucket's virtual host)")

	f.String("access_key", "", "Access key (default: the AWS credential chain)")
	f.String("secret_key", "", "Secret key")
	f.String("session_token", "", "Session token")
	f.String("signature_version", "v4", "Signature version: v4 or v2")
	f.String("placement", "header", "Signature placement: header or query")

	f.Bool("skip_owner", false, "Do not decode listing owners")
	f.Bool("skip_storage_class", false, "Do not decode listing storage classes")
	f.Bool("skip_last_modified", false, "Do not decode listing timestamps")
	f.Bool("skip_etag", false, "Do not decode listing ETags")

	f.Int("max_conns_per_host", 64, "Maximum connections per virtual host")
	f.Duration("dial_timeout", 5*time.Second, "Connection dial timeout")
	f.Float64("rate_limit", 0, "Maximum requests per second (0 = unlimited)")
	f.Int("rate_burst", 1, "Rate limiter burst")
	f.Duration("timeout", 5*time.Minute, "Overall command timeout")

	f.String("debug_addr", "", "Serve /metrics and pprof on this address while the command runs")
	f.String("log_level", "warn", "Log level (trace, debug, info, warn, error)")

	viper.BindPFlags(f)
}

func initialize(cmd *cobra.Command, args []string) error {
	utils.LoadConfiguration("zaps3", false)
	f := NewFlagLoader(cmd)

	level, err := zerolog.ParseLevel(f.String("log_level"))
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if addr := f.String("debug_addr"); addr != "" {
		debugServer, err = debug.Start(addr)
		if err != nil {
			return err
		}
	}
	return nil
}

func shutdown(cmd *cobra.Command, args []string) {
	if debugServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	debugServer.Shutdown(ctx)
	debugServer = nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}
