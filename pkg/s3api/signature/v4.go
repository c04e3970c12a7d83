// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"crypto/hmac"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/minio/sha256-simd"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/utils"
)

// AWS Signature Version 4 implementation following:
// https://docs.aws.amazon.com/general/latest/gr/signature-version-4.html

// Signer signs request descriptors. It holds no per-request state and is
// safe for concurrent use.
type Signer struct {
	region    string
	service   string
	version   Version
	placement Placement
	expires   time.Duration
	now       func() time.Time
}

type Option func(*Signer)

// WithRegion sets the region in the credential scope. Default us-east-1.
func WithRegion(region string) Option {
	return func(s *Signer) { s.region = region }
}

// WithService sets the service in the credential scope. Default s3.
func WithService(service string) Option {
	return func(s *Signer) { s.service = service }
}

func WithVersion(v Version) Option {
	return func(s *Signer) { s.version = v }
}

func WithPlacement(p Placement) Option {
	return func(s *Signer) { s.placement = p }
}

// WithExpires sets how long a query-placed signature stays valid. Default 15m.
func WithExpires(d time.Duration) Option {
	return func(s *Signer) { s.expires = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		region:    "us-east-1",
		service:   "s3",
		version:   V4,
		placement: PlacementHeader,
		expires:   15 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignatureContext is the per-request signing state: who signs, with which
// derived key, when, and for which scope.
type SignatureContext struct {
	AccessKeyID string
	SigningKey  []byte
	Timestamp   time.Time
	Scope       string
}

func (s *Signer) newContext(creds aws.Credentials, t time.Time) SignatureContext {
	date := t.Format(Iso8601DateFormat)
	return SignatureContext{
		AccessKeyID: creds.AccessKeyID,
		SigningKey:  deriveSigningKey(creds.SecretAccessKey, date, s.region, s.service),
		Timestamp:   t,
		Scope:       strings.Join([]string{date, s.region, s.service, scopeTerminator}, "/"),
	}
}

// Sign returns a signed copy of desc. desc itself is not modified.
func (s *Signer) Sign(desc s3types.RequestDescriptor, creds aws.Credentials, kind OperationKind) (s3types.RequestDescriptor, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return s3types.RequestDescriptor{}, ErrMissingCredentials
	}
	t := s.now().UTC()
	out := desc.Clone()
	if kind == OpPut && desc.ContentMD5 != "" && out.Header.Get("Content-MD5") == "" {
		out.Header.Set("Content-MD5", desc.ContentMD5)
	}

	switch {
	case s.version == V2 && s.placement == PlacementQuery:
		s.presignV2(&out, creds, t, s.expires)
	case s.version == V2:
		s.signV2(&out, creds, t, kind)
	case s.placement == PlacementQuery:
		s.presignV4(&out, creds, t, s.expires)
	default:
		s.signV4(&out, creds, t, kind)
	}
	return out, nil
}

// Presign returns a copy of desc carrying a query signature valid for
// expires, regardless of the configured placement.
func (s *Signer) Presign(desc s3types.RequestDescriptor, creds aws.Credentials, expires time.Duration) (s3types.RequestDescriptor, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return s3types.RequestDescriptor{}, ErrMissingCredentials
	}
	t := s.now().UTC()
	out := desc.Clone()
	if s.version == V2 {
		s.presignV2(&out, creds, t, expires)
	} else {
		s.presignV4(&out, creds, t, expires)
	}
	return out, nil
}

func (s *Signer) signV4(out *s3types.RequestDescriptor, creds aws.Credentials, t time.Time, kind OperationKind) {
	sc := s.newContext(creds, t)
	amzDate := t.Format(Iso8601BasicFormat)

	payloadHash := HashedEmptyPayload
	if kind == OpPut {
		payloadHash = out.ContentSHA256
		if payloadHash == "" {
			payloadHash = UnsignedPayload
		}
	}
	out.Header.Set(s3consts.XAmzDate, amzDate)
	out.Header.Set(s3consts.XAmzContentSHA256, payloadHash)
	if creds.SessionToken != "" {
		out.Header.Set(s3consts.XAmzSecurityTok, creds.SessionToken)
	}

	headers, signed := canonicalHeaders(*out, signedHeaderNames(*out, kind))
	creq := canonicalRequest(*out, headers, signed, payloadHash)
	signature := calculateSignature(sc.SigningKey, buildStringToSign(amzDate, sc.Scope, creq))

	out.Header.Set("Authorization", AuthHeaderV4+" Credential="+sc.AccessKeyID+"/"+sc.Scope+
		", SignedHeaders="+signed+", Signature="+signature)
}

func (s *Signer) presignV4(out *s3types.RequestDescriptor, creds aws.Credentials, t time.Time, expires time.Duration) {
	sc := s.newContext(creds, t)
	amzDate := t.Format(Iso8601BasicFormat)

	secs := int64(expires / time.Second)
	secs = max(1, min(secs, maxPresignExpiry))

	out.AddQuery(s3consts.QueryAlgorithm, AuthHeaderV4)
	out.AddQuery(s3consts.QueryCredential, sc.AccessKeyID+"/"+sc.Scope)
	out.AddQuery(s3consts.QueryDate, amzDate)
	out.AddQuery(s3consts.QueryExpires, strconv.FormatInt(secs, 10))
	out.AddQuery(s3consts.QuerySignedHeaders, "host")
	if creds.SessionToken != "" {
		out.AddQuery(s3consts.QuerySecurityToken, creds.SessionToken)
	}

	headers, signed := canonicalHeaders(*out, []string{"host"})
	creq := canonicalRequest(*out, headers, signed, UnsignedPayload)
	out.AddQuery(s3consts.QuerySignature, calculateSignature(sc.SigningKey, buildStringToSign(amzDate, sc.Scope, creq)))
}

// buildStringToSign creates the AWS Signature V4 string to sign
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	// String to sign format:
	// Algorithm + "\n" +
	// RequestDateTime + "\n" +
	// CredentialScope + "\n" +
	// HashedCanonicalRequest
	return strings.Join([]string{
		AuthHeaderV4,
		amzDate,
		scope,
		utils.Sha256Hex([]byte(canonicalRequest)),
	}, "\n")
}

// deriveSigningKey derives the signing key using HMAC-SHA256 chain
func deriveSigningKey(secretKey, date, region, service string) []byte {
	// kSecret = "AWS4" + SecretKey
	// kDate = HMAC("AWS4" + SecretKey, Date)
	// kRegion = HMAC(kDate, Region)
	// kService = HMAC(kRegion, Service)
	// kSigning = HMAC(kService, "aws4_request")

	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminator))
}

// calculateSignature computes the final signature
func calculateSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

// hmacSHA256 computes HMAC-SHA256
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
