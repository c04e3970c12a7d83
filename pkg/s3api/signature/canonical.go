package signature

import (
	"net/http"
	"slices"
	"strings"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// canonicalHeaders builds the canonical header block and the signed header
// list for the named headers. Names must be lowercase. Host comes from the
// descriptor, everything else from its header map; absent headers are left
// out of both results.
func canonicalHeaders(desc s3types.RequestDescriptor, names []string) (string, string) {
	present := make([]string, 0, len(names))
	values := make(map[string]string, len(names))
	for _, name := range names {
		if _, dup := values[name]; dup {
			continue
		}
		if name == "host" {
			values[name] = desc.Host
			present = append(present, name)
			continue
		}
		vals := desc.Header.Values(name)
		if len(vals) == 0 {
			continue
		}
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.Join(strings.Fields(v), " ")
		}
		values[name] = strings.Join(trimmed, ",")
		present = append(present, name)
	}
	slices.Sort(present)

	var b strings.Builder
	for _, name := range present {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(present, ";")
}

// amzHeaderNames returns the lowercase names of every x-amz-* header.
func amzHeaderNames(h http.Header) []string {
	var names []string
	for name := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-") {
			names = append(names, lower)
		}
	}
	slices.Sort(names)
	return names
}

// signedHeaderNames returns the headers a V4 header signature covers for kind.
func signedHeaderNames(desc s3types.RequestDescriptor, kind OperationKind) []string {
	if kind != OpPut {
		names := []string{"host", "x-amz-content-sha256", "x-amz-date"}
		if desc.Header.Get("X-Amz-Security-Token") != "" {
			names = append(names, "x-amz-security-token")
		}
		return names
	}
	names := []string{"host", "content-md5", "content-type"}
	return append(names, amzHeaderNames(desc.Header)...)
}

// canonicalRequest joins the six canonical request lines.
func canonicalRequest(desc s3types.RequestDescriptor, headers, signed, payloadHash string) string {
	return strings.Join([]string{
		desc.Method,
		desc.EscapedPath(),
		desc.EncodedQuery(),
		headers,
		signed,
		payloadHash,
	}, "\n")
}
