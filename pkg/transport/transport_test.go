// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

const testHost = "bucket.s3.local"

type result struct {
	resp *Response
	err  error
}

type chanSink chan result

func (s chanSink) OnSuccess(resp *Response) { s <- result{resp: resp} }
func (s chanSink) OnError(err error) { s <- result{err: err} }

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newTransport(t *testing.T, srv *httptest.Server, opts ...Option) *Transport {
	t.Helper()
	tr := New(append([]Option{WithEndpoint(srv.Listener.Addr().String())}, opts...)...)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func execute(t *testing.T, tr *Transport, ctx context.Context, desc s3types.RequestDescriptor) result {
	t.Helper()
	sink := make(chanSink, 1)
	tr.Execute(ctx, desc, sink)
	select {
	case r := <-sink:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal callback")
		return result{}
	}
}

func TestExecuteRoundTripReusesConnection(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testHost, r.Host)
		assert.Equal(t, "/dir/a%20b.txt", r.URL.EscapedPath())
		assert.Equal(t, "prefix=x%2Fy", r.URL.RawQuery)
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		io.WriteString(w, "hello")
	})
	metrics := NewMetrics("test")
	tr := newTransport(t, srv, WithMetrics(metrics))

	desc := s3types.RequestDescriptor{
		Method: http.MethodGet,
		Host:   testHost,
		Path:   "/dir/a b.txt",
		Query:  []s3types.QueryParam{{Name: "prefix", Value: "x/y"}},
		Header: http.Header{"X-Test": []string{"v"}},
	}
	for range 2 {
		r := execute(t, tr, context.Background(), desc)
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.resp.StatusCode)
		assert.Equal(t, "hello", string(r.resp.Body))
		assert.True(t, r.resp.KeepAlive)
		assert.Zero(t, tr.Pool().Acquired())
	}

	assert.Equal(t, 1, tr.Pool().Idle())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Dialed))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Reused))
}

func TestExecuteRedialsAfterPeerClosesIdleConnection(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	metrics := NewMetrics("test")
	tr := newTransport(t, srv, WithMetrics(metrics))
	desc := s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/k"}

	r := execute(t, tr, context.Background(), desc)
	require.NoError(t, r.err)
	require.Equal(t, 1, tr.Pool().Idle())

	srv.CloseClientConnections()
	require.Eventually(t, func() bool { return tr.Pool().Idle() == 0 }, 2*time.Second, 5*time.Millisecond)

	r = execute(t, tr, context.Background(), desc)
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.resp.StatusCode)
	assert.Equal(t, "ok", string(r.resp.Body))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Dialed))
	assert.Zero(t, testutil.ToFloat64(metrics.Reused))
}

func TestExecuteTLSEndpointServerName(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testHost, r.Host)
		io.WriteString(w, "secure")
	}))
	t.Cleanup(srv.Close)
	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	desc := s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/k"}

	// The test certificate names example.com, not the virtual host.
	tr := newTransport(t, srv, WithTLS(&tls.Config{RootCAs: roots}))
	r := execute(t, tr, context.Background(), desc)
	require.Error(t, r.err)

	tr = newTransport(t, srv, WithTLS(&tls.Config{RootCAs: roots, ServerName: "example.com"}))
	r = execute(t, tr, context.Background(), desc)
	require.NoError(t, r.err)
	assert.Equal(t, "secure", string(r.resp.Body))
}

func TestExecutePutSendsBody(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "payload", string(body))
		assert.EqualValues(t, 7, r.ContentLength)
		w.WriteHeader(http.StatusOK)
	})
	tr := newTransport(t, srv)

	r := execute(t, tr, context.Background(), s3types.RequestDescriptor{
		Method:        http.MethodPut,
		Host:          testHost,
		Path:          "/k",
		Body:          strings.NewReader("payload"),
		ContentLength: 7,
	})
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.resp.StatusCode)
}

func TestExecuteConnectionCloseDiscardsConnection(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusOK)
	})
	metrics := NewMetrics("test")
	tr := newTransport(t, srv, WithMetrics(metrics))

	r := execute(t, tr, context.Background(), s3types.RequestDescriptor{Method: http.MethodPut, Host: testHost, Path: "/k"})
	require.NoError(t, r.err)
	assert.False(t, r.resp.KeepAlive)
	assert.Zero(t, tr.Pool().Acquired())
	assert.Zero(t, tr.Pool().Idle())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Closed))
}

func TestExecutePeerCloseIsInactive(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := http.NewResponseController(w).Hijack()
		if assert.NoError(t, err) {
			conn.Close()
		}
	})
	tr := newTransport(t, srv)

	r := execute(t, tr, context.Background(), s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/k"})
	require.Error(t, r.err)
	assert.ErrorIs(t, r.err, s3err.ErrConnectionInactive)
	assert.Zero(t, tr.Pool().Acquired())
	assert.Zero(t, tr.Pool().Idle())
}

func TestExecuteCancelAbortsExchange(t *testing.T) {
	t.Parallel()

	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	tr := newTransport(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	sink := make(chanSink, 1)
	tr.Execute(ctx, s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/slow"}, sink)

	<-arrived
	cancel()

	select {
	case r := <-sink:
		require.Error(t, r.err)
		assert.ErrorIs(t, r.err, context.Canceled)
		var te *s3err.TransportError
		assert.True(t, errors.As(r.err, &te))
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not complete the exchange")
	}
	assert.Zero(t, tr.Pool().Acquired())
	assert.Zero(t, tr.Pool().Idle())
}

func TestExecuteDialFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := New(WithEndpoint(addr), WithDialTimeout(time.Second))
	t.Cleanup(func() { tr.Close() })

	sink := make(chanSink, 1)
	tr.Execute(context.Background(), s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/"}, sink)
	r := <-sink

	var te *s3err.TransportError
	require.ErrorAs(t, r.err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.Zero(t, tr.Pool().Acquired())
}

func TestExecuteRateLimited(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	tr := newTransport(t, srv, WithRateLimit(0.001, 1))

	r := execute(t, tr, context.Background(), s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/"})
	require.NoError(t, r.err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r = execute(t, tr, ctx, s3types.RequestDescriptor{Method: http.MethodGet, Host: testHost, Path: "/"})
	var te *s3err.TransportError
	require.ErrorAs(t, r.err, &te)
	assert.Equal(t, "rate limit", te.Op)
}
