// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// KeepAlive is false when the server asked to close the connection.
	KeepAlive bool
}

// Conn is one pooled HTTP/1.1 connection to a virtual host.
type Conn struct {
	host      string
	nc        net.Conn
	br        *bufio.Reader
	bw        *bufio.Writer
	metrics   *Metrics
	idleSince time.Time
	closed    atomic.Bool

	// idleErr receives the result of the read parked on an idle connection.
	idleErr chan error
}

func newConn(host string, nc net.Conn, metrics *Metrics) *Conn {
	return &Conn{
		host:    host,
		nc:      nc,
		br:      bufio.NewReader(nc),
		bw:      bufio.NewWriter(nc),
		metrics: metrics,
	}
}

// Host returns the virtual host the connection serves.
func (c *Conn) Host() string {
	return c.host
}

// Close closes the underlying socket. Only the first call has effect.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.metrics.closed()
	return c.nc.Close()
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// abort unblocks any in-flight read or write.
func (c *Conn) abort() {
	_ = c.nc.SetDeadline(time.Unix(1, 0))
}

// park starts a background read while the connection sits idle, so a peer
// close or unsolicited bytes are seen before the connection is reused.
// Such a connection is closed by the reader.
func (c *Conn) park() {
	done := make(chan error, 1)
	c.idleErr = done
	go func() {
		_, err := c.br.Peek(1)
		if !isTimeout(err) {
			c.Close()
		}
		done <- err
	}()
}

// unpark stops the idle read and reports whether the connection can carry
// another request. A connection that cannot is closed.
func (c *Conn) unpark() bool {
	if c.idleErr == nil {
		return !c.Closed()
	}
	_ = c.nc.SetReadDeadline(time.Unix(1, 0))
	err := <-c.idleErr
	c.idleErr = nil
	if !isTimeout(err) {
		c.Close()
		return false
	}
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		c.Close()
		return false
	}
	return true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// roundTrip writes req and reads the complete response.
func (c *Conn) roundTrip(req *http.Request) (*Response, error) {
	if err := req.Write(c.bw); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		KeepAlive:  !resp.Close,
	}, nil
}

// dial opens a connection for host according to opts.
func dial(ctx context.Context, host string, opts *Options) (*Conn, error) {
	addr := opts.Endpoint
	if addr == "" {
		port := "80"
		if opts.Secure {
			port = "443"
		}
		addr = net.JoinHostPort(host, port)
	}

	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		opts.Metrics.dialError()
		return nil, err
	}

	if opts.Secure {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if opts.TLSConfig != nil {
			cfg = opts.TLSConfig.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = hostOnly(host)
		}
		tc := tls.Client(nc, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			nc.Close()
			opts.Metrics.dialError()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		nc = tc
	}

	opts.Metrics.dialed()
	return newConn(host, nc, opts.Metrics), nil
}

func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
