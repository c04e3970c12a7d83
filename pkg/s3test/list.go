// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3test

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// listObjects answers ListObjects (v1). NextMarker is only reported when a
// delimiter is set, as S3 does; clients derive it from the last key
// otherwise.
func (s *Server) listObjects(w http.ResponseWriter, r *http.Request, bucketName string) {
	q := r.URL.Query()
	prefix := q.Get(s3consts.QueryPrefix)
	delimiter := q.Get(s3consts.QueryDelimiter)
	marker := q.Get(s3consts.QueryMarker)
	encodingType := q.Get(s3consts.QueryEncodingType)

	maxKeys := s3consts.DefaultMaxKeys
	if v := q.Get(s3consts.QueryMaxKeys); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, s3err.ErrInvalidArgument, "max-keys")
			return
		}
		maxKeys = min(n, s3consts.DefaultMaxKeys)
	}
	if encodingType != "" && encodingType != s3consts.EncodingTypeURL {
		writeError(w, s3err.ErrInvalidArgument, "encoding-type")
		return
	}

	s.mu.Lock()
	b, ok := s.buckets[bucketName]
	if !ok {
		s.mu.Unlock()
		writeError(w, s3err.ErrNoSuchBucket, bucketName)
		return
	}
	result := s3types.ListObjectsResult{
		Xmlns:     xmlns,
		Name:      bucketName,
		Prefix:    prefix,
		Marker:    marker,
		MaxKeys:   maxKeys,
		Delimiter: delimiter,
	}
	var last string
	count := 0
	b.ascend(prefix, marker, func(k string, o *object) bool {
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				cp := k[:len(prefix)+i+len(delimiter)]
				if cp <= marker || cp == last {
					return true
				}
				if count == maxKeys {
					result.IsTruncated = true
					return false
				}
				result.CommonPrefixes = append(result.CommonPrefixes, s3types.CommonPrefix{Prefix: cp})
				last = cp
				count++
				return true
			}
		}
		if count == maxKeys {
			result.IsTruncated = true
			return false
		}
		owner := Owner
		result.Contents = append(result.Contents, s3types.ObjectContent{
			Key:          k,
			LastModified: o.modified.Format(time.RFC3339Nano),
			ETag:         o.etag,
			Size:         int64(len(o.data)),
			Owner:        &owner,
			StorageClass: o.storageClass,
		})
		last = k
		count++
		return true
	})
	s.mu.Unlock()

	if result.IsTruncated && delimiter != "" {
		result.NextMarker = last
	}
	if encodingType == s3consts.EncodingTypeURL {
		urlEncodeResult(&result)
	}
	writeXML(w, http.StatusOK, result)
}

func urlEncodeResult(r *s3types.ListObjectsResult) {
	r.EncodingType = s3consts.EncodingTypeURL
	r.Prefix = url.QueryEscape(r.Prefix)
	r.Marker = url.QueryEscape(r.Marker)
	r.NextMarker = url.QueryEscape(r.NextMarker)
	r.Delimiter = url.QueryEscape(r.Delimiter)
	for i := range r.Contents {
		r.Contents[i].Key = url.QueryEscape(r.Contents[i].Key)
	}
	for i := range r.CommonPrefixes {
		r.CommonPrefixes[i].Prefix = url.QueryEscape(r.CommonPrefixes[i].Prefix)
	}
}
