// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"
)

const uriScheme = "s3://"

// ObjectURI names a bucket and an optional key or prefix.
type ObjectURI struct {
	Bucket string
	Key    string
}

func (u ObjectURI) String() string {
	return uriScheme + u.Bucket + "/" + u.Key
}

// ParseObjectURI parses s3://bucket[/key]. The key is kept verbatim,
// including any trailing slash.
func ParseObjectURI(s string) (ObjectURI, error) {
	rest, ok := strings.CutPrefix(s, uriScheme)
	if !ok {
		return ObjectURI{}, fmt.Errorf("%q: expected %sbucket/key", s, uriScheme)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return ObjectURI{}, fmt.Errorf("%q: missing bucket", s)
	}
	return ObjectURI{Bucket: bucket, Key: key}, nil
}

// parseKeyURI is ParseObjectURI for commands that need a key.
func parseKeyURI(s string) (ObjectURI, error) {
	u, err := ParseObjectURI(s)
	if err != nil {
		return u, err
	}
	if u.Key == "" {
		return u, fmt.Errorf("%q: missing key", s)
	}
	return u, nil
}
