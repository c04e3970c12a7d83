// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import (
	"cmp"
	"io"
	"net/http"
	"slices"
	"strings"
)

// QueryParam is one name/value pair of a request query string. Order is
// preserved as built; signing sorts a copy.
type QueryParam struct {
	Name  string
	Value string
}

// RequestDescriptor describes one outgoing request before it is signed.
// Treat it as immutable once built: Clone before changing a copy.
type RequestDescriptor struct {
	Method string
	Bucket string
	// Host is the virtual host, bucket.<service-host>.
	Host string
	// Path is unescaped and starts with "/".
	Path   string
	Query  []QueryParam
	Header http.Header
	Body   io.Reader

	ContentLength int64
	// ContentSHA256 is the hex SHA-256 of Body, empty when unknown.
	ContentSHA256 string
	// ContentMD5 is the base64 MD5 of Body, empty when unknown.
	ContentMD5 string
}

// Clone returns a copy whose query and header can be changed without
// affecting d. The body reader is shared.
func (d RequestDescriptor) Clone() RequestDescriptor {
	c := d
	c.Query = slices.Clone(d.Query)
	if d.Header != nil {
		c.Header = d.Header.Clone()
	} else {
		c.Header = make(http.Header)
	}
	return c
}

// QueryValue returns the first value of the named query parameter.
func (d RequestDescriptor) QueryValue(name string) (string, bool) {
	for _, q := range d.Query {
		if q.Name == name {
			return q.Value, true
		}
	}
	return "", false
}

// AddQuery appends a query parameter.
func (d *RequestDescriptor) AddQuery(name, value string) {
	d.Query = append(d.Query, QueryParam{Name: name, Value: value})
}

// EscapedPath returns Path URI-encoded with "/" kept as the separator.
func (d RequestDescriptor) EscapedPath() string {
	if d.Path == "" {
		return "/"
	}
	return URIEncode(d.Path, false)
}

// EncodedQuery returns the query string with every name and value
// URI-encoded, sorted by name then value. The same string is signed and
// sent on the wire.
func (d RequestDescriptor) EncodedQuery() string {
	if len(d.Query) == 0 {
		return ""
	}
	encoded := make([]QueryParam, len(d.Query))
	for i, q := range d.Query {
		encoded[i] = QueryParam{Name: URIEncode(q.Name, true), Value: URIEncode(q.Value, true)}
	}
	slices.SortFunc(encoded, func(a, b QueryParam) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Value, b.Value))
	})

	var b strings.Builder
	for i, q := range encoded {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(q.Name)
		b.WriteByte('=')
		b.WriteString(q.Value)
	}
	return b.String()
}

// URIEncode percent-encodes every byte outside A-Za-z0-9-_.~ using
// uppercase hex. Spaces become %20. When encodeSlash is false "/" is kept.
func URIEncode(s string, encodeSlash bool) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
