// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3test runs an in-memory S3 endpoint for tests. Buckets are
// addressed virtual-host style (bucket.<service host>) and the server
// speaks the object subset of the S3 REST API: PUT, GET, DELETE and
// ListObjects (v1).
package s3test

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"
)

const (
	// DefaultServiceHost is the service host buckets are addressed under.
	DefaultServiceHost = "s3.test"

	xmlns = "http://s3.amazonaws.com/doc/2006-03-01/"
)

// Owner is reported for every listed object.
var Owner = s3types.Owner{ID: "75aa57f09aa0c8caeab4f8c24e99d10f8e7faeebf76c078efc7c6caea54ba06a", DisplayName: "zaps3"}

// Fault is a one-shot failure applied to the next matching request.
type Fault int

const (
	// FaultHangUp closes the connection without writing a response.
	FaultHangUp Fault = iota + 1
	// FaultMalformedBody answers 200 with a body that is not XML.
	FaultMalformedBody
	// FaultUnparseableError answers 500 with an HTML body.
	FaultUnparseableError
	// FaultStall holds the request until the client goes away.
	FaultStall
)

// Request is a request as the server received it.
type Request struct {
	Method string
	Host   string
	Bucket string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type object struct {
	data         []byte
	etag         string
	modified     time.Time
	storageClass string
	contentType  string
	meta         http.Header
}

// objectItem orders a bucket's objects by key.
type objectItem struct {
	key string
	obj *object
}

// Less implements btree.Item interface
func (a *objectItem) Less(b btree.Item) bool {
	return a.key < b.(*objectItem).key
}

type bucket struct {
	objects *btree.BTree
}

func newBucket() *bucket {
	return &bucket{objects: btree.New(2)}
}

func (b *bucket) get(key string) (*object, bool) {
	item := b.objects.Get(&objectItem{key: key})
	if item == nil {
		return nil, false
	}
	return item.(*objectItem).obj, true
}

func (b *bucket) put(key string, o *object) {
	b.objects.ReplaceOrInsert(&objectItem{key: key, obj: o})
}

func (b *bucket) delete(key string) {
	b.objects.Delete(&objectItem{key: key})
}

// ascend visits objects whose key has prefix and sorts after marker, in
// key order, until fn returns false.
func (b *bucket) ascend(prefix, marker string, fn func(key string, o *object) bool) {
	b.objects.AscendGreaterOrEqual(&objectItem{key: max(prefix, marker)}, func(item btree.Item) bool {
		it := item.(*objectItem)
		if it.key == marker {
			return true
		}
		if !strings.HasPrefix(it.key, prefix) {
			return false
		}
		return fn(it.key, it.obj)
	})
}

// Server is an in-memory S3 endpoint.
type Server struct {
	srv         *httptest.Server
	serviceHost string
	done        chan struct{}
	closeOnce   sync.Once

	mu               sync.Mutex
	buckets          map[string]*bucket
	requests         []Request
	faults           []Fault
	closeConnections bool
	requireAuth      bool
	now              func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithServiceHost sets the host buckets are addressed under.
func WithServiceHost(host string) Option {
	return func(s *Server) {
		s.serviceHost = host
	}
}

// WithClock fixes the time stamped on stored objects.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithRequireAuth rejects requests that carry neither an Authorization
// header nor a presigned signature.
func WithRequireAuth() Option {
	return func(s *Server) {
		s.requireAuth = true
	}
}

// NewServer starts a server on a loopback port.
func NewServer(opts ...Option) *Server {
	s := &Server{
		serviceHost: DefaultServiceHost,
		done:        make(chan struct{}),
		buckets:     make(map[string]*bucket),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return s.srv.Listener.Addr().String()
}

// ServiceHost is the host buckets are addressed under.
func (s *Server) ServiceHost() string {
	return s.serviceHost
}

// Close releases stalled requests and shuts the server down.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.srv.CloseClientConnections()
		s.srv.Close()
	})
}

// CreateBucket adds an empty bucket. Existing buckets are left alone.
func (s *Server) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = newBucket()
	}
}

// PutObject stores data directly, creating the bucket when needed.
func (s *Server) PutObject(bucketName, key string, data []byte) {
	s.CreateBucket(bucketName)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucketName].put(key, s.newObject(data, "", "", nil))
}

// Object returns a copy of the stored data.
func (s *Server) Object(bucketName, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil, false
	}
	o, ok := b.get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(o.data), true
}

// ObjectMetadata returns the user metadata and storage class of an object.
func (s *Server) ObjectMetadata(bucketName, key string) (http.Header, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil, "", false
	}
	o, ok := b.get(key)
	if !ok {
		return nil, "", false
	}
	return o.meta.Clone(), o.storageClass, true
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// SetCloseConnections makes every response carry Connection: close.
func (s *Server) SetCloseConnections(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConnections = v
}

// InjectFault queues f for the next request. Faults are consumed in order.
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

func (s *Server) newObject(data []byte, storageClass, contentType string, meta http.Header) *object {
	sum := md5.Sum(data)
	if storageClass == "" {
		storageClass = s3consts.StorageClassStandard
	}
	return &object{
		data:         data,
		etag:         `"` + hex.EncodeToString(sum[:]) + `"`,
		modified:     s.now().UTC().Truncate(time.Millisecond),
		storageClass: storageClass,
		contentType:  contentType,
		meta:         meta,
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return
	}
	bucketName := s.bucketFromHost(r.Host)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Host:   r.Host,
		Bucket: bucketName,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	var fault Fault
	if len(s.faults) > 0 {
		fault = s.faults[0]
		s.faults = s.faults[1:]
	}
	closeConn := s.closeConnections
	s.mu.Unlock()

	w.Header().Set(s3consts.XAmzRequestID, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]))
	w.Header().Set(s3consts.XAmzId2, base64.StdEncoding.EncodeToString([]byte(r.Host)))
	if closeConn {
		w.Header().Set("Connection", "close")
	}

	switch fault {
	case FaultHangUp:
		if conn, _, err := http.NewResponseController(w).Hijack(); err == nil {
			conn.Close()
		}
		return
	case FaultMalformedBody:
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, "<ListBucketResult><Name>unterminated")
		return
	case FaultUnparseableError:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<html><body><h1>Internal Server Error</h1></body></html>")
		return
	case FaultStall:
		select {
		case <-r.Context().Done():
		case <-s.done:
		}
		return
	}

	if s.requireAuth && r.Header.Get("Authorization") == "" &&
		r.URL.Query().Get(s3consts.QuerySignature) == "" && r.URL.Query().Get("Signature") == "" {
		writeError(w, s3err.ErrAccessDenied, r.URL.Path)
		return
	}
	if bucketName == "" {
		writeError(w, s3err.ErrInvalidBucketName, r.Host)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && key == "":
		s.listObjects(w, r, bucketName)
	case r.Method == http.MethodGet:
		s.getObject(w, bucketName, key)
	case r.Method == http.MethodPut && key != "":
		s.putObject(w, r, bucketName, key, body)
	case r.Method == http.MethodDelete && key != "":
		s.deleteObject(w, bucketName, key)
	default:
		writeError(w, s3err.ErrMethodNotAllowed, r.URL.Path)
	}
}

func (s *Server) bucketFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	name, ok := strings.CutSuffix(host, "."+s.serviceHost)
	if !ok {
		return ""
	}
	return name
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, bucketName, key string, body []byte) {
	if md5b64 := r.Header.Get("Content-MD5"); md5b64 != "" {
		want, err := base64.StdEncoding.DecodeString(md5b64)
		if err != nil {
			writeError(w, s3err.ErrInvalidDigest, r.URL.Path)
			return
		}
		sum := md5.Sum(body)
		if !bytes.Equal(want, sum[:]) {
			writeError(w, s3err.ErrBadDigest, r.URL.Path)
			return
		}
	}
	if h := r.Header.Get(s3consts.XAmzContentSHA256); h != "" && h != s3consts.UnsignedPayload {
		if utils.Sha256Hex(body) != h {
			writeError(w, s3err.ErrBadDigest, r.URL.Path)
			return
		}
	}
	if want := r.Header.Get(s3consts.XAmzChecksumCRC64NVME); want != "" {
		if got := utils.DigestBytes(body).CRC64NVME; got != want {
			writeError(w, s3err.ErrBadDigest, r.URL.Path)
			return
		}
		w.Header().Set(s3consts.XAmzChecksumCRC64NVME, want)
	}

	sc, err := s3types.ParseStorageClass(r.Header.Get(s3consts.XAmzStorageClass))
	if err != nil {
		writeError(w, s3err.ErrInvalidStorageClass, r.URL.Path)
		return
	}

	meta := http.Header{}
	for name, values := range r.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, s3consts.XAmzMetaPrefix) {
			meta[strings.TrimPrefix(lower, s3consts.XAmzMetaPrefix)] = values
		}
	}

	s.mu.Lock()
	b, ok := s.buckets[bucketName]
	if !ok {
		s.mu.Unlock()
		writeError(w, s3err.ErrNoSuchBucket, bucketName)
		return
	}
	o := s.newObject(body, sc.String(), r.Header.Get("Content-Type"), meta)
	b.put(key, o)
	s.mu.Unlock()

	w.Header().Set("ETag", o.etag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getObject(w http.ResponseWriter, bucketName, key string) {
	s.mu.Lock()
	b, ok := s.buckets[bucketName]
	if !ok {
		s.mu.Unlock()
		writeError(w, s3err.ErrNoSuchBucket, bucketName)
		return
	}
	o, ok := b.get(key)
	s.mu.Unlock()
	if !ok {
		writeError(w, s3err.ErrNoSuchKey, "/"+key)
		return
	}

	w.Header().Set("ETag", o.etag)
	w.Header().Set("Last-Modified", o.modified.Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
	if o.contentType != "" {
		w.Header().Set("Content-Type", o.contentType)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(o.data)
}

func (s *Server) deleteObject(w http.ResponseWriter, bucketName, key string) {
	s.mu.Lock()
	b, ok := s.buckets[bucketName]
	if ok {
		b.delete(key)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, s3err.ErrNoSuchBucket, bucketName)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, code s3err.ErrorCode, resource string) {
	resp := code.ToErrorResponse(resource)
	resp.RequestID = w.Header().Get(s3consts.XAmzRequestID)
	resp.HostID = w.Header().Get(s3consts.XAmzId2)
	writeXML(w, code.HTTPStatusCode(), resp)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
