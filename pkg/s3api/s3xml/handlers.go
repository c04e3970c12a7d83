// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3xml

import (
	"net/url"
	"strconv"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// handler reacts to the events of one open element.
//
// start is called for each child element. It returns the handler to push
// for that child, or nil when the child is a text element whose content is
// delivered to end. close is called on the element's own end tag, after
// which the frame is popped.
type handler interface {
	start(st *ContextStack, name string) (handler, error)
	end(st *ContextStack, name, text string) error
	close(st *ContextStack) error
}

// skipHandler swallows an element and everything below it.
type skipHandler struct{}

func (skipHandler) start(*ContextStack, string) (handler, error) { return skipHandler{}, nil }
func (skipHandler) end(*ContextStack, string, string) error { return nil }
func (skipHandler) close(*ContextStack) error { return nil }

// listingDocument accepts a single ListBucketResult root.
type listingDocument struct{}

func (listingDocument) start(st *ContextStack, name string) (handler, error) {
	if st.rootSeen {
		return nil, s3err.NewDecodeError(name, "unexpected element after document root")
	}
	if name != "ListBucketResult" {
		return nil, s3err.NewDecodeError(name, "unexpected root element, want <ListBucketResult>")
	}
	st.rootSeen = true
	return listBucketHandler{}, nil
}

func (listingDocument) end(st *ContextStack, name, _ string) error {
	return s3err.NewDecodeError(name, "text at document level")
}

func (listingDocument) close(*ContextStack) error { return nil }

type listBucketHandler struct{}

func (listBucketHandler) start(st *ContextStack, name string) (handler, error) {
	switch name {
	case "Name", "Prefix", "Marker", "NextMarker", "MaxKeys", "Delimiter", "IsTruncated", "EncodingType":
		return nil, nil
	case "Contents":
		st.summary = &s3types.ObjectSummary{}
		return contentsHandler{}, nil
	case "CommonPrefixes":
		return commonPrefixesHandler{}, nil
	}
	return skipHandler{}, nil
}

func (listBucketHandler) end(st *ContextStack, name, text string) error {
	l := st.listing
	switch name {
	case "Name":
		l.BucketName = trimText(text)
	case "Prefix":
		l.Prefix = text
	case "Marker":
		l.Marker = text
	case "NextMarker":
		l.NextMarker = text
	case "Delimiter":
		l.Delimiter = text
	case "EncodingType":
		l.EncodingType = trimText(text)
	case "MaxKeys":
		n, err := strconv.Atoi(trimText(text))
		if err != nil {
			return &s3err.DecodeError{Element: name, Err: err}
		}
		l.MaxKeys = n
	case "IsTruncated":
		b, err := strconv.ParseBool(trimText(text))
		if err != nil {
			return &s3err.DecodeError{Element: name, Err: err}
		}
		l.Truncated = b
	}
	return nil
}

func (listBucketHandler) close(st *ContextStack) error {
	l := st.listing
	if l.EncodingType == s3consts.EncodingTypeURL {
		if err := urlDecodeListing(l); err != nil {
			return err
		}
	}
	for i := range l.Objects {
		l.Objects[i].Bucket = l.BucketName
	}

	if !l.Truncated {
		l.NextMarker = ""
		return nil
	}
	if l.NextMarker != "" {
		return nil
	}
	switch {
	case len(l.Objects) > 0:
		l.NextMarker = l.Objects[len(l.Objects)-1].Key
	case len(l.CommonPrefixes) > 0:
		l.NextMarker = l.CommonPrefixes[len(l.CommonPrefixes)-1]
	default:
		return s3err.NewDecodeError("ListBucketResult", "truncated listing has no next marker, keys or common prefixes")
	}
	return nil
}

func urlDecodeListing(l *s3types.ObjectListing) error {
	var err error
	decode := func(s *string) {
		if err != nil || *s == "" {
			return
		}
		var v string
		if v, err = url.QueryUnescape(*s); err == nil {
			*s = v
		}
	}
	decode(&l.Prefix)
	decode(&l.Marker)
	decode(&l.NextMarker)
	decode(&l.Delimiter)
	for i := range l.Objects {
		decode(&l.Objects[i].Key)
	}
	for i := range l.CommonPrefixes {
		decode(&l.CommonPrefixes[i])
	}
	if err != nil {
		return &s3err.DecodeError{Element: "ListBucketResult", Err: err}
	}
	return nil
}

type contentsHandler struct{}

func (contentsHandler) start(st *ContextStack, name string) (handler, error) {
	switch name {
	case "Key", "Size":
		return nil, nil
	case "LastModified":
		if st.opts.SkipLastModified {
			return skipHandler{}, nil
		}
		return nil, nil
	case "ETag":
		if st.opts.SkipETag {
			return skipHandler{}, nil
		}
		return nil, nil
	case "StorageClass":
		if st.opts.SkipStorageClass {
			return skipHandler{}, nil
		}
		return nil, nil
	case "Owner":
		if st.opts.SkipOwner {
			return skipHandler{}, nil
		}
		st.owner = &s3types.Owner{}
		return ownerHandler{}, nil
	}
	return skipHandler{}, nil
}

func (contentsHandler) end(st *ContextStack, name, text string) error {
	s := st.summary
	switch name {
	case "Key":
		s.Key = text
	case "Size":
		n, err := strconv.ParseInt(trimText(text), 10, 64)
		if err != nil {
			return &s3err.DecodeError{Element: name, Err: err}
		}
		s.Size = n
	case "LastModified":
		t, err := time.Parse(time.RFC3339Nano, trimText(text))
		if err != nil {
			return &s3err.DecodeError{Element: name, Err: err}
		}
		s.LastModified = &t
	case "ETag":
		v := text
		s.ETag = &v
	case "StorageClass":
		v := trimText(text)
		s.StorageClass = &v
	}
	return nil
}

func (contentsHandler) close(st *ContextStack) error {
	st.listing.Objects = append(st.listing.Objects, *st.summary)
	st.summary = nil
	return nil
}

type ownerHandler struct{}

func (ownerHandler) start(_ *ContextStack, name string) (handler, error) {
	switch name {
	case "ID", "DisplayName":
		return nil, nil
	}
	return skipHandler{}, nil
}

func (ownerHandler) end(st *ContextStack, name, text string) error {
	switch name {
	case "ID":
		st.owner.ID = trimText(text)
	case "DisplayName":
		st.owner.DisplayName = text
	}
	return nil
}

func (ownerHandler) close(st *ContextStack) error {
	st.summary.Owner = st.owner
	st.owner = nil
	return nil
}

type commonPrefixesHandler struct{}

func (commonPrefixesHandler) start(_ *ContextStack, name string) (handler, error) {
	if name == "Prefix" {
		return nil, nil
	}
	return skipHandler{}, nil
}

func (commonPrefixesHandler) end(st *ContextStack, name, text string) error {
	if name == "Prefix" {
		st.listing.CommonPrefixes = append(st.listing.CommonPrefixes, text)
	}
	return nil
}

func (commonPrefixesHandler) close(*ContextStack) error { return nil }

// errorDocument accepts a single Error root.
type errorDocument struct{}

func (errorDocument) start(st *ContextStack, name string) (handler, error) {
	if st.rootSeen {
		return nil, s3err.NewDecodeError(name, "unexpected element after document root")
	}
	if name != "Error" {
		return nil, s3err.NewDecodeError(name, "unexpected root element, want <Error>")
	}
	st.rootSeen = true
	return errorFieldsHandler{}, nil
}

func (errorDocument) end(st *ContextStack, name, _ string) error {
	return s3err.NewDecodeError(name, "text at document level")
}

func (errorDocument) close(*ContextStack) error { return nil }

type errorFieldsHandler struct{}

func (errorFieldsHandler) start(_ *ContextStack, name string) (handler, error) {
	switch name {
	case "Code", "Message", "RequestId", "HostId", "Resource":
		return nil, nil
	}
	return skipHandler{}, nil
}

func (errorFieldsHandler) end(st *ContextStack, name, text string) error {
	e := st.errDoc
	switch name {
	case "Code":
		e.Code = trimText(text)
	case "Message":
		e.Message = text
	case "RequestId":
		e.RequestID = trimText(text)
	case "HostId":
		e.HostID = trimText(text)
	case "Resource":
		e.Resource = text
	}
	return nil
}

func (errorFieldsHandler) close(*ContextStack) error { return nil }
