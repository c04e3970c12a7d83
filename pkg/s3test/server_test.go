// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3test

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

func do(t *testing.T, s *Server, method, bucket, target string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, "http://"+s.Addr()+target, strings.NewReader(body))
	require.NoError(t, err)
	req.Host = bucket + "." + s.ServiceHost()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func list(t *testing.T, s *Server, bucket, query string) s3types.ListObjectsResult {
	t.Helper()
	resp := do(t, s, http.MethodGet, bucket, "/?"+query, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out s3types.ListObjectsResult
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&out))
	return out
}

func keys(r s3types.ListObjectsResult) []string {
	var out []string
	for _, c := range r.Contents {
		out = append(out, c.Key)
	}
	return out
}

func TestServerObjectLifecycle(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.CreateBucket("b")

	resp := do(t, s, http.MethodPut, "b", "/dir/file.txt", "content")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("ETag"))

	resp = do(t, s, http.MethodGet, "b", "/dir/file.txt", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "content", string(data))

	resp = do(t, s, http.MethodDelete, "b", "/dir/file.txt", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, s, http.MethodGet, "b", "/dir/file.txt", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e s3err.Error
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "NoSuchKey", e.Code)
	assert.Equal(t, resp.Header.Get("x-amz-request-id"), e.RequestID)

	assert.Len(t, s.Requests(), 4)
}

func TestServerUnknownBucket(t *testing.T) {
	s := NewServer()
	defer s.Close()

	resp := do(t, s, http.MethodGet, "missing", "/", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerListPagination(t *testing.T) {
	s := NewServer()
	defer s.Close()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		s.PutObject("b", k, []byte(k))
	}

	page := list(t, s, "b", "max-keys=2")
	assert.Equal(t, []string{"a", "b"}, keys(page))
	assert.True(t, page.IsTruncated)
	assert.Empty(t, page.NextMarker)

	page = list(t, s, "b", "max-keys=2&marker=b")
	assert.Equal(t, []string{"c", "d"}, keys(page))
	assert.True(t, page.IsTruncated)

	page = list(t, s, "b", "max-keys=2&marker=d")
	assert.Equal(t, []string{"e"}, keys(page))
	assert.False(t, page.IsTruncated)
}

func TestServerListDelimiter(t *testing.T) {
	s := NewServer()
	defer s.Close()
	for _, k := range []string{"top", "x/1", "x/2", "y/1", "z"} {
		s.PutObject("b", k, nil)
	}

	page := list(t, s, "b", "delimiter=%2F&max-keys=2")
	assert.Equal(t, []string{"top"}, keys(page))
	require.Len(t, page.CommonPrefixes, 1)
	assert.Equal(t, "x/", page.CommonPrefixes[0].Prefix)
	assert.True(t, page.IsTruncated)
	assert.Equal(t, "x/", page.NextMarker)

	page = list(t, s, "b", "delimiter=%2F&max-keys=2&marker=x%2F")
	assert.Equal(t, []string{"z"}, keys(page))
	require.Len(t, page.CommonPrefixes, 1)
	assert.Equal(t, "y/", page.CommonPrefixes[0].Prefix)
	assert.False(t, page.IsTruncated)
}

func TestServerListURLEncoding(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.PutObject("b", "my dir/é", nil)

	page := list(t, s, "b", "encoding-type=url")
	assert.Equal(t, "url", page.EncodingType)
	assert.Equal(t, []string{"my+dir%2F%C3%A9"}, keys(page))
}

func TestServerBadDigest(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.CreateBucket("b")

	req, err := http.NewRequest(http.MethodPut, "http://"+s.Addr()+"/k", strings.NewReader("data"))
	require.NoError(t, err)
	req.Host = "b." + s.ServiceHost()
	req.Header.Set("Content-MD5", "1B2M2Y8AsgTpgAmY7PhCfg==")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, ok := s.Object("b", "k")
	assert.False(t, ok)
}

func TestServerInvalidStorageClass(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.CreateBucket("b")

	req, err := http.NewRequest(http.MethodPut, "http://"+s.Addr()+"/k", strings.NewReader("data"))
	require.NoError(t, err)
	req.Host = "b." + s.ServiceHost()
	req.Header.Set("x-amz-storage-class", "FROZEN")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e s3err.Error
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "InvalidStorageClass", e.Code)
}

func TestServerFaults(t *testing.T) {
	s := NewServer()
	defer s.Close()
	s.PutObject("b", "k", []byte("v"))

	s.InjectFault(FaultUnparseableError)
	resp := do(t, s, http.MethodGet, "b", "/k", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	s.InjectFault(FaultHangUp)
	req, err := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/k", nil)
	require.NoError(t, err)
	req.Host = "b." + s.ServiceHost()
	fresh := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	_, err = fresh.Do(req)
	assert.Error(t, err)

	resp = do(t, s, http.MethodGet, "b", "/k", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerRequireAuth(t *testing.T) {
	s := NewServer(WithRequireAuth())
	defer s.Close()
	s.PutObject("b", "k", []byte("v"))

	resp := do(t, s, http.MethodGet, "b", "/k", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, s, http.MethodGet, "b", "/k?X-Amz-Signature=abc", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
