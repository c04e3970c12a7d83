// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"sync"

	"github.com/minio/crc64nvme"
	"github.com/minio/sha256-simd"
)

var (
	bufferPool = newPool(func() *bytes.Buffer { return new(bytes.Buffer) })
	sha256Pool = newPool(func() hash.Hash { return sha256.New() })
	md5Pool    = newPool(func() hash.Hash { return md5.New() })
	crc64Pool  = newPool(func() hash.Hash64 { return crc64nvme.New() })
)

// typedPool is a sync.Pool that hands out values of a single type.
type typedPool[T any] struct {
	p sync.Pool
}

func newPool[T any](fn func() T) *typedPool[T] {
	return &typedPool[T]{p: sync.Pool{New: func() any { return fn() }}}
}

func (p *typedPool[T]) Get() T {
	return p.p.Get().(T)
}

func (p *typedPool[T]) Put(v T) {
	p.p.Put(v)
}

func SyncPoolGetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

func SyncPoolPutBuffer(buffer *bytes.Buffer) {
	buffer.Reset()
	bufferPool.Put(buffer)
}

func Sha256PoolGetHasher() hash.Hash {
	return sha256Pool.Get()
}

func Sha256PoolPutHasher(h hash.Hash) {
	h.Reset()
	sha256Pool.Put(h)
}

func Md5PoolGetHasher() hash.Hash {
	return md5Pool.Get()
}

func Md5PoolPutHasher(h hash.Hash) {
	h.Reset()
	md5Pool.Put(h)
}

func Crc64nvmePoolGetHasher() hash.Hash64 {
	return crc64Pool.Get()
}

func Crc64nvmePoolPutHasher(h hash.Hash64) {
	h.Reset()
	crc64Pool.Put(h)
}

// Sha256Hex returns the lowercase hex SHA-256 of data.
func Sha256Hex(data []byte) string {
	h := Sha256PoolGetHasher()
	defer Sha256PoolPutHasher(h)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadDigests holds the digests of a request body.
type PayloadDigests struct {
	SHA256Hex string // hex, as sent in x-amz-content-sha256
	MD5Base64 string // base64, as sent in Content-MD5
	CRC64NVME string // base64 of the big-endian checksum
	Size      int64
}

// DigestReadSeeker hashes r from its current offset to EOF and seeks back.
func DigestReadSeeker(r io.ReadSeeker) (PayloadDigests, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return PayloadDigests{}, err
	}

	sh := Sha256PoolGetHasher()
	defer Sha256PoolPutHasher(sh)
	mh := Md5PoolGetHasher()
	defer Md5PoolPutHasher(mh)
	ch := Crc64nvmePoolGetHasher()
	defer Crc64nvmePoolPutHasher(ch)

	n, err := io.Copy(io.MultiWriter(sh, mh, ch), r)
	if err != nil {
		return PayloadDigests{}, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return PayloadDigests{}, err
	}

	var crc [8]byte
	binary.BigEndian.PutUint64(crc[:], ch.Sum64())

	return PayloadDigests{
		SHA256Hex: hex.EncodeToString(sh.Sum(nil)),
		MD5Base64: base64.StdEncoding.EncodeToString(mh.Sum(nil)),
		CRC64NVME: base64.StdEncoding.EncodeToString(crc[:]),
		Size:      n,
	}, nil
}

// DigestBytes returns the digests of data.
func DigestBytes(data []byte) PayloadDigests {
	d, _ := DigestReadSeeker(bytes.NewReader(data))
	return d
}
