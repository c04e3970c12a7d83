// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// Transport dispatches signed requests over a Pool. Every call to Execute
// runs on its own goroutine and ends in exactly one Sink callback.
type Transport struct {
	pool    *Pool
	limiter *rate.Limiter
	scheme  string
}

// New creates a Transport and its Pool
func New(opts ...Option) *Transport {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	t := &Transport{
		pool:   newPool(options),
		scheme: "http",
	}
	if options.Secure {
		t.scheme = "https"
	}
	if options.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), t.pool.opts.Burst)
	}
	return t
}

// Pool returns the connection pool.
func (t *Transport) Pool() *Pool {
	return t.pool
}

// Close closes the pool.
func (t *Transport) Close() error {
	return t.pool.Close()
}

// Execute sends desc and reports the outcome to sink. It returns
// immediately. Cancelling ctx before the response is read aborts the
// exchange; the sink then sees an error wrapping ctx.Err().
func (t *Transport) Execute(ctx context.Context, desc s3types.RequestDescriptor, sink Sink) {
	go t.exchange(ctx, desc, sink)
}

func (t *Transport) exchange(ctx context.Context, desc s3types.RequestDescriptor, sink Sink) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			sink.OnError(&s3err.TransportError{Op: "rate limit", Host: desc.Host, Err: err})
			return
		}
	}

	req, err := t.buildRequest(ctx, desc)
	if err != nil {
		sink.OnError(&s3err.TransportError{Op: "build request", Host: desc.Host, Err: err})
		return
	}

	conn, err := t.pool.Acquire(ctx, desc.Host)
	if err != nil {
		sink.OnError(&s3err.TransportError{Op: "dial", Host: desc.Host, Err: err})
		return
	}
	h := NewConnectionHandler(conn, t.pool, sink)

	start := time.Now()
	stop := context.AfterFunc(ctx, conn.abort)
	resp, err := conn.roundTrip(req)
	aborted := !stop()

	log := logger.Ctx(ctx)
	switch {
	case err == nil:
		if aborted {
			// The deadline was already moved into the past.
			resp.KeepAlive = false
		}
		log.Trace().
			Str("method", desc.Method).
			Str("host", desc.Host).
			Str("path", desc.Path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("exchange complete")
		h.OnResponse(resp)
	case ctx.Err() != nil:
		h.OnError(ctx.Err())
	case isInactive(err):
		h.OnInactive()
	default:
		h.OnError(err)
	}
}

func (t *Transport) buildRequest(ctx context.Context, desc s3types.RequestDescriptor) (*http.Request, error) {
	path := desc.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{
		Scheme:   t.scheme,
		Host:     desc.Host,
		Path:     path,
		RawPath:  desc.EscapedPath(),
		RawQuery: desc.EncodedQuery(),
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.URL = u
	req.Host = desc.Host
	for k, v := range desc.Header {
		req.Header[k] = v
	}
	if desc.Body != nil && desc.ContentLength > 0 {
		req.Body = io.NopCloser(desc.Body)
		req.ContentLength = desc.ContentLength
	}
	return req, nil
}

// isInactive reports whether err means the peer went away.
func isInactive(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
