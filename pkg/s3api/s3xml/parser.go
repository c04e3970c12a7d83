// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3xml decodes S3 response bodies into typed results with a
// streaming token loop and an explicit stack of element handlers.
package s3xml

import (
	"errors"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

// Parser turns a complete response into a value. The bool reports whether
// a value is present; a false result with a nil error is a completed-empty
// outcome.
type Parser[T any] interface {
	Parse(resp *transport.Response, st *ContextStack) (T, bool, error)
}

// DecodeOptions selects listing fields the decoder does not descend into.
// Skipped fields stay nil in the result.
type DecodeOptions struct {
	SkipOwner        bool
	SkipStorageClass bool
	SkipLastModified bool
	SkipETag         bool
}

// Bytes delivers the body unchanged.
type Bytes struct{}

func (Bytes) Parse(resp *transport.Response, _ *ContextStack) ([]byte, bool, error) {
	if resp.Body == nil {
		return []byte{}, true, nil
	}
	return resp.Body, true, nil
}

// Discard ignores the body and produces no value.
type Discard struct{}

func (Discard) Parse(*transport.Response, *ContextStack) (struct{}, bool, error) {
	return struct{}{}, false, nil
}

// Listing decodes a ListObjects (v1) result.
type Listing struct {
	Options DecodeOptions
}

func (p Listing) Parse(resp *transport.Response, st *ContextStack) (*s3types.ObjectListing, bool, error) {
	st.Reset()
	st.opts = p.Options
	st.listing = &s3types.ObjectListing{}

	err := st.decode(resp.Body, listingDocument{})
	listing := st.listing
	st.listing, st.summary, st.owner = nil, nil, nil
	if err != nil {
		return nil, false, err
	}
	return listing, true, nil
}

// errMissingCode marks an error document without a Code element.
var errMissingCode = errors.New("error document has no Code")

// ErrorEnvelope decodes the error document of a non-success response.
// RequestID falls back to the x-amz-request-id header.
type ErrorEnvelope struct{}

func (ErrorEnvelope) Parse(resp *transport.Response, st *ContextStack) (*s3err.Error, bool, error) {
	st.Reset()
	st.errDoc = &s3err.Error{HTTPCode: resp.StatusCode}

	err := st.decode(resp.Body, errorDocument{})
	doc := st.errDoc
	st.errDoc = nil
	if err != nil {
		return nil, false, err
	}
	if doc.Code == "" {
		return nil, false, &s3err.DecodeError{Element: "Error", Err: errMissingCode}
	}
	if doc.RequestID == "" && resp.Header != nil {
		doc.RequestID = resp.Header.Get(s3consts.XAmzRequestID)
	}
	if doc.HostID == "" && resp.Header != nil {
		doc.HostID = resp.Header.Get(s3consts.XAmzId2)
	}
	return doc, true, nil
}
