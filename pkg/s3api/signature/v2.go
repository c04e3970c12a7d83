package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3consts"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// AWS Signature Version 2 implementation following:
// https://docs.aws.amazon.com/AmazonS3/latest/userguide/RESTAuthentication.html

// v2SubResources are the query parameters that belong to the canonicalized
// resource, in the order they must appear.
var v2SubResources = []string{
	"acl", "delete", "lifecycle", "location", "logging", "notification",
	"partNumber", "policy", "requestPayment", "tagging", "torrent",
	"uploadId", "uploads", "versionId", "versioning", "versions", "website",
}

func (s *Signer) signV2(out *s3types.RequestDescriptor, creds aws.Credentials, t time.Time, kind OperationKind) {
	out.Header.Set("Date", t.Format(http.TimeFormat))
	if creds.SessionToken != "" {
		out.Header.Set(s3consts.XAmzSecurityTok, creds.SessionToken)
	}

	var contentMD5, contentType string
	if kind == OpPut {
		contentMD5 = out.Header.Get("Content-MD5")
		contentType = out.Header.Get("Content-Type")
	}
	toSign := buildStringToSignV2(*out, contentMD5, contentType, out.Header.Get("Date"))
	out.Header.Set("Authorization", AuthHeaderV2+" "+creds.AccessKeyID+":"+calculateSignatureV2(creds.SecretAccessKey, toSign))
}

func (s *Signer) presignV2(out *s3types.RequestDescriptor, creds aws.Credentials, t time.Time, expires time.Duration) {
	exp := strconv.FormatInt(t.Add(expires).Unix(), 10)
	if creds.SessionToken != "" {
		out.AddQuery(s3consts.XAmzSecurityTok, creds.SessionToken)
	}
	toSign := buildStringToSignV2(*out, "", "", exp)
	out.AddQuery("AWSAccessKeyId", creds.AccessKeyID)
	out.AddQuery("Expires", exp)
	out.AddQuery("Signature", calculateSignatureV2(creds.SecretAccessKey, toSign))
}

// buildStringToSignV2 creates the AWS Signature V2 string to sign
// Format:
// HTTP-Verb + "\n" +
// Content-MD5 + "\n" +
// Content-Type + "\n" +
// Date + "\n" +
// CanonicalizedAmzHeaders +
// CanonicalizedResource
func buildStringToSignV2(desc s3types.RequestDescriptor, contentMD5, contentType, date string) string {
	return strings.Join([]string{
		desc.Method,
		contentMD5,
		contentType,
		date,
		canonicalizedAmzHeaders(desc.Header) + canonicalizedResource(desc),
	}, "\n")
}

// canonicalizedAmzHeaders creates canonicalized x-amz-* headers
func canonicalizedAmzHeaders(h http.Header) string {
	var b strings.Builder
	for _, name := range amzHeaderNames(h) {
		vals := h.Values(name)
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.TrimSpace(v)
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(trimmed, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalizedResource creates the canonicalized resource string
// Format: /bucket/key with subresources
func canonicalizedResource(desc s3types.RequestDescriptor) string {
	resource := desc.EscapedPath()
	if desc.Bucket != "" {
		resource = "/" + desc.Bucket + resource
	}

	var found []string
	for _, sub := range v2SubResources {
		v, ok := desc.QueryValue(sub)
		if !ok {
			continue
		}
		if v != "" {
			found = append(found, sub+"="+v)
		} else {
			found = append(found, sub)
		}
	}
	if len(found) > 0 {
		resource += "?" + strings.Join(found, "&")
	}
	return resource
}

// calculateSignatureV2 computes the HMAC-SHA1 signature for V2
func calculateSignatureV2(secretKey, stringToSign string) string {
	h := hmac.New(sha1.New, []byte(secretKey))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
