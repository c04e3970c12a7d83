// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync/atomic"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
)

// Sink receives the terminal outcome of one exchange.
type Sink interface {
	OnSuccess(resp *Response)
	OnError(err error)
}

// ConnectionHandler binds a pooled connection to the sink of the request
// running on it. Of OnResponse, OnError and OnInactive only the first call
// has effect: it closes the connection when required, releases it exactly
// once and then notifies the sink.
type ConnectionHandler struct {
	conn     *Conn
	releaser Releaser
	sink     Sink
	done     atomic.Bool
}

func NewConnectionHandler(conn *Conn, releaser Releaser, sink Sink) *ConnectionHandler {
	return &ConnectionHandler{
		conn:     conn,
		releaser: releaser,
		sink:     sink,
	}
}

// OnResponse handles a complete response. A connection the server will not
// keep open is closed before release.
func (h *ConnectionHandler) OnResponse(resp *Response) {
	if !h.done.CompareAndSwap(false, true) {
		return
	}
	if !resp.KeepAlive {
		h.conn.Close()
	}
	h.releaser.Release(h.conn)
	h.sink.OnSuccess(resp)
}

// OnError handles a failed exchange. The connection is always closed.
func (h *ConnectionHandler) OnError(err error) {
	if !h.done.CompareAndSwap(false, true) {
		return
	}
	h.conn.Close()
	h.releaser.Release(h.conn)

	logger.Warn().Err(err).Str("host", h.conn.Host()).Msg("exchange failed")
	h.sink.OnError(&s3err.TransportError{Op: "exchange", Host: h.conn.Host(), Err: err})
}

// OnInactive handles a connection the peer closed before responding.
func (h *ConnectionHandler) OnInactive() {
	if !h.done.CompareAndSwap(false, true) {
		return
	}
	h.conn.Close()
	h.releaser.Release(h.conn)

	logger.Warn().Str("host", h.conn.Host()).Msg("connection became inactive")
	h.sink.OnError(&s3err.TransportError{Op: "read", Host: h.conn.Host(), Err: s3err.ErrConnectionInactive})
}

// Done reports whether a terminal event has been handled.
func (h *ConnectionHandler) Done() bool {
	return h.done.Load()
}
