// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3err

import (
	"errors"
	"fmt"
)

// ErrConnectionInactive is the cause of a TransportError raised when the
// peer closed the connection before a response arrived.
var ErrConnectionInactive = errors.New("connection became inactive before a response was received")

// TransportError reports a failure below the HTTP layer: dial, write,
// read, cancellation or connection loss.
type TransportError struct {
	Op   string
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnparseableError is returned for a non-success status whose body is not
// a recognisable error document. Cause records why the body was rejected.
// It is not unwrapped, so errors.As never finds a DecodeError behind a
// non-success status.
type UnparseableError struct {
	StatusCode int
	Cause      error
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("received unparseable error with code: %d", e.StatusCode)
}

// DecodeError is returned when a success response body does not have the
// shape the operation expects.
type DecodeError struct {
	Element string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("decode response: %v", e.Err)
	}
	return fmt.Sprintf("decode response at <%s>: %v", e.Element, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError builds a DecodeError for element with a formatted cause.
func NewDecodeError(element, format string, args ...any) *DecodeError {
	return &DecodeError{Element: element, Err: fmt.Errorf(format, args...)}
}
