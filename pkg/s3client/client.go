// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3client is an asynchronous client for S3-compatible object
// stores. Every operation returns immediately with a Future that is
// completed exactly once, on the goroutine that ran the exchange.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3xml"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/signature"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"
)

const (
	opPut    = "PutObject"
	opGet    = "GetObject"
	opDelete = "DeleteObject"
	opList   = "ListObjects"
)

// ErrInvalidRequest is returned for requests missing a bucket or key.
var ErrInvalidRequest = errors.New("invalid request")

// Client issues signed requests over a shared connection pool. It is safe
// for concurrent use.
type Client struct {
	cfg       Config
	signer    *signature.Signer
	transport *transport.Transport
	metrics   *metrics
}

// New creates a Client. Options are applied over DefaultConfig.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Client from a complete Config. The client's
// collectors are registered on cfg.MetricsRegisterer, so one registerer
// serves one client.
func NewWithConfig(cfg Config) (*Client, error) {
	if cfg.ServiceHost == "" {
		return nil, errors.New("s3client: service host is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	poolOpts := cfg.Pool
	poolOpts.Endpoint = cfg.Endpoint
	poolOpts.Secure = cfg.Secure
	poolOpts.TLSConfig = cfg.TLSConfig
	if poolOpts.Metrics == nil {
		poolOpts.Metrics = transport.NewMetrics(metricsNamespace)
	}
	tr := transport.New(func(o *transport.Options) { *o = poolOpts })

	c := &Client{
		cfg: cfg,
		signer: signature.NewSigner(
			signature.WithRegion(cfg.Region),
			signature.WithVersion(cfg.SignatureVersion),
			signature.WithPlacement(cfg.Placement),
			signature.WithClock(cfg.Clock),
		),
		transport: tr,
	}
	c.metrics = newMetrics(cfg.MetricsRegisterer, poolOpts.Metrics, func() float64 {
		return float64(tr.Pool().Acquired())
	})

	logger.Debug().
		Str("service_host", cfg.ServiceHost).
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Str("signature", cfg.SignatureVersion.String()).
		Msg("Created S3 client")

	return c, nil
}

// Close closes pooled connections. Requests in flight finish on their own
// connections, which are closed when released.
func (c *Client) Close() error {
	return c.transport.Close()
}

// AcquiredConnections reports connections currently checked out of the pool.
func (c *Client) AcquiredConnections() int {
	return c.transport.Pool().Acquired()
}

// VirtualHost returns the host a bucket is addressed under.
func (c *Client) VirtualHost(bucket string) string {
	return bucket + "." + c.cfg.ServiceHost
}

// PutObject uploads req.Body. The future completes empty on success.
func (c *Client) PutObject(ctx context.Context, req *s3types.PutObjectRequest) *Future[struct{}] {
	if req == nil || req.Bucket == "" || req.Key == "" {
		return failed[struct{}](fmt.Errorf("%w: bucket and key are required", ErrInvalidRequest))
	}

	desc := c.newDescriptor(http.MethodPut, req.Bucket, req.Key)
	md := putMetadata{ObjectMetadata: req.Metadata}
	if md.ContentType != "" {
		desc.Header.Set("Content-Type", md.ContentType)
	}
	if md.StorageClass != "" {
		desc.Header.Set(s3consts.XAmzStorageClass, md.StorageClass)
	}
	for name, value := range md.UserMetadata {
		desc.Header.Set(s3consts.XAmzMetaPrefix+strings.ToLower(name), value)
	}

	body, release, err := preparePutBody(req.Body, &md)
	if err != nil {
		return failed[struct{}](fmt.Errorf("read body: %w", err))
	}
	if md.ContentLength > s3consts.MaxObjectSize {
		release()
		return failed[struct{}](s3err.ErrEntityTooLarge)
	}
	desc.Body = io.LimitReader(body, md.ContentLength)
	desc.ContentLength = md.ContentLength
	desc.ContentMD5 = md.ContentMD5
	desc.ContentSHA256 = md.ContentSHA256
	if md.Checksum == s3types.ChecksumAlgorithmCRC64NVMe && md.crc64 != "" {
		desc.Header.Set(s3consts.XAmzSdkChecksumAlgo, s3consts.ChecksumAlgoCRC64NVME)
		desc.Header.Set(s3consts.XAmzChecksumCRC64NVME, md.crc64)
	}

	f := dispatch(ctx, c, opPut, signature.OpPut, desc, s3xml.Parser[struct{}](s3xml.Discard{}))
	f.OnDone(func(Outcome[struct{}]) { release() })
	return f
}

// GetObject downloads an object. The future holds the body.
func (c *Client) GetObject(ctx context.Context, bucket, key string) *Future[[]byte] {
	if bucket == "" || key == "" {
		return failed[[]byte](fmt.Errorf("%w: bucket and key are required", ErrInvalidRequest))
	}
	desc := c.newDescriptor(http.MethodGet, bucket, key)
	return dispatch(ctx, c, opGet, signature.OpGet, desc, s3xml.Parser[[]byte](s3xml.Bytes{}))
}

// DeleteObject removes an object. The future completes empty on success.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) *Future[struct{}] {
	if bucket == "" || key == "" {
		return failed[struct{}](fmt.Errorf("%w: bucket and key are required", ErrInvalidRequest))
	}
	desc := c.newDescriptor(http.MethodDelete, bucket, key)
	return dispatch(ctx, c, opDelete, signature.OpDelete, desc, s3xml.Parser[struct{}](s3xml.Discard{}))
}

// ListObjects fetches one page of a ListObjects (v1) listing.
func (c *Client) ListObjects(ctx context.Context, req *s3types.ListObjectsRequest) *Future[*s3types.ObjectListing] {
	if req == nil || req.Bucket == "" {
		return failed[*s3types.ObjectListing](fmt.Errorf("%w: bucket is required", ErrInvalidRequest))
	}

	desc := c.newDescriptor(http.MethodGet, req.Bucket, "")
	if req.Prefix != "" {
		desc.AddQuery(s3consts.QueryPrefix, req.Prefix)
	}
	if req.Delimiter != "" {
		desc.AddQuery(s3consts.QueryDelimiter, req.Delimiter)
	}
	if req.Marker != "" {
		desc.AddQuery(s3consts.QueryMarker, req.Marker)
	}
	if req.MaxKeys > 0 {
		desc.AddQuery(s3consts.QueryMaxKeys, strconv.Itoa(req.MaxKeys))
	}
	if req.EncodingType != "" {
		desc.AddQuery(s3consts.QueryEncodingType, req.EncodingType)
	}

	parser := s3xml.Listing{Options: c.cfg.Decode}
	return dispatch(ctx, c, opList, signature.OpList, desc, s3xml.Parser[*s3types.ObjectListing](parser))
}

// ListNextBatchOfObjects continues prev. A page that is not truncated has
// no successor: the returned future is already complete with an empty,
// non-truncated page and no request is sent.
func (c *Client) ListNextBatchOfObjects(ctx context.Context, prev *s3types.ObjectListing) *Future[*s3types.ObjectListing] {
	if prev == nil {
		return failed[*s3types.ObjectListing](fmt.Errorf("%w: previous listing is required", ErrInvalidRequest))
	}
	if !prev.Truncated {
		return completedFuture(Outcome[*s3types.ObjectListing]{
			Value: &s3types.ObjectListing{
				BucketName:   prev.BucketName,
				Prefix:       prev.Prefix,
				Delimiter:    prev.Delimiter,
				Marker:       prev.NextMarker,
				MaxKeys:      prev.MaxKeys,
				EncodingType: prev.EncodingType,
			},
			Present: true,
		})
	}
	return c.ListObjects(ctx, prev.Request())
}

// PresignGetObject returns a URL that fetches an object without further
// credentials until expires has passed.
func (c *Client) PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("%w: bucket and key are required", ErrInvalidRequest)
	}
	creds, err := c.retrieveCredentials(ctx)
	if err != nil {
		return "", err
	}
	desc := s3types.RequestDescriptor{
		Method: http.MethodGet,
		Bucket: bucket,
		Host:   c.VirtualHost(bucket),
		Path:   "/" + key,
		Header: http.Header{},
	}
	signed, err := c.signer.Presign(desc, creds, expires)
	if err != nil {
		return "", err
	}

	scheme := "http"
	if c.cfg.Secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     signed.Host,
		Path:     signed.Path,
		RawPath:  signed.EscapedPath(),
		RawQuery: signed.EncodedQuery(),
	}
	return u.String(), nil
}

func (c *Client) newDescriptor(method, bucket, key string) s3types.RequestDescriptor {
	desc := s3types.RequestDescriptor{
		Method: method,
		Bucket: bucket,
		Host:   c.VirtualHost(bucket),
		Path:   "/" + key,
		Header: http.Header{},
	}
	if c.cfg.UserAgent != "" {
		desc.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return desc
}

func (c *Client) retrieveCredentials(ctx context.Context) (aws.Credentials, error) {
	if c.cfg.Credentials == nil {
		return aws.Credentials{}, signature.ErrMissingCredentials
	}
	creds, err := c.cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("retrieve credentials: %w", err)
	}
	return creds, nil
}

// dispatch signs desc and hands it to the transport without blocking the
// caller. Credential and signing failures complete the future as errors.
func dispatch[T any](ctx context.Context, c *Client, op string, kind signature.OperationKind, desc s3types.RequestDescriptor, parser s3xml.Parser[T]) *Future[T] {
	invocation := uuid.NewString()
	desc.Header.Set(s3consts.AmzSdkInvocationID, invocation)
	sink := newCompletionSink(op, invocation, parser, c.metrics)

	logger.Ctx(ctx).Debug().
		Str("operation", op).
		Str("invocation_id", invocation).
		Str("host", desc.Host).
		Str("path", desc.Path).
		Msg("dispatching request")

	go func() {
		creds, err := c.retrieveCredentials(ctx)
		if err != nil {
			sink.OnError(err)
			return
		}
		signed, err := c.signer.Sign(desc, creds, kind)
		if err != nil {
			sink.OnError(err)
			return
		}
		c.transport.Execute(ctx, signed, sink)
	}()
	return sink.future
}

func failed[T any](err error) *Future[T] {
	return completedFuture(Outcome[T]{Err: err})
}

// putMetadata extends ObjectMetadata with the computed checksum value.
type putMetadata struct {
	s3types.ObjectMetadata
	crc64 string
}

// preparePutBody returns the body to send and fills in length and digests.
// Seekable bodies are hashed in place. Other bodies are buffered when their
// length is unknown or a checksum is requested; otherwise they are streamed
// with an unsigned payload. release returns any buffer to its pool.
func preparePutBody(r io.Reader, md *putMetadata) (io.Reader, func(), error) {
	release := func() {}
	if r == nil {
		r = bytes.NewReader(nil)
	}

	rs, seekable := r.(io.ReadSeeker)
	if !seekable {
		if md.ContentLength > 0 && md.Checksum == s3types.ChecksumAlgorithmNone {
			return r, release, nil
		}
		buf := utils.SyncPoolGetBuffer()
		if _, err := io.Copy(buf, r); err != nil {
			utils.SyncPoolPutBuffer(buf)
			return nil, release, err
		}
		release = func() { utils.SyncPoolPutBuffer(buf) }
		rs = bytes.NewReader(buf.Bytes())
		md.ContentLength = int64(buf.Len())
	}

	d, err := utils.DigestReadSeeker(rs)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	if md.ContentLength == 0 || md.ContentLength > d.Size {
		md.ContentLength = d.Size
	}
	if md.ContentLength == d.Size {
		if md.ContentMD5 == "" {
			md.ContentMD5 = d.MD5Base64
		}
		if md.ContentSHA256 == "" {
			md.ContentSHA256 = d.SHA256Hex
		}
		md.crc64 = d.CRC64NVME
	}
	return rs, release, nil
}
