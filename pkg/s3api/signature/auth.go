package signature

import (
	"errors"
	"fmt"
	"strings"
)

const (
	AuthHeaderV4 = "AWS4-HMAC-SHA256"
	AuthHeaderV2 = "AWS"

	Iso8601BasicFormat = "20060102T150405Z"
	Iso8601DateFormat  = "20060102"

	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// Precomputed SHA256 hash of an empty payload
	HashedEmptyPayload = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	scopeTerminator = "aws4_request"

	// maxPresignExpiry is the longest validity a V4 presigned URL may carry.
	maxPresignExpiry = 7 * 24 * 60 * 60
)

// ErrMissingCredentials is returned when the access key or the secret key
// is empty. It is never retried.
var ErrMissingCredentials = errors.New("signature: missing access key or secret key")

// OperationKind selects which headers take part in the signature.
type OperationKind int

const (
	OpGet OperationKind = iota
	OpPut
	OpDelete
	OpList
)

func (k OperationKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpList:
		return "list"
	default:
		return "unknown"
	}
}

// Version is the signature algorithm.
type Version int

const (
	V4 Version = iota
	// V2 is the legacy HMAC-SHA1 scheme some S3-compatible stores still require.
	V2
)

func (v Version) String() string {
	switch v {
	case V4:
		return "v4"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// ParseVersion accepts "v4", "v2" and their bare digits.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v4", "4":
		return V4, nil
	case "v2", "2":
		return V2, nil
	}
	return V4, fmt.Errorf("unknown signature version %q", s)
}

// Placement selects where the signature is carried.
type Placement int

const (
	// PlacementHeader carries the signature in the Authorization header.
	PlacementHeader Placement = iota
	// PlacementQuery carries it in query parameters, as in a presigned URL.
	PlacementQuery
)

func (p Placement) String() string {
	switch p {
	case PlacementHeader:
		return "header"
	case PlacementQuery:
		return "query"
	default:
		return "unknown"
	}
}

// ParsePlacement accepts "header" and "query".
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "header":
		return PlacementHeader, nil
	case "query":
		return PlacementQuery, nil
	}
	return PlacementHeader, fmt.Errorf("unknown signature placement %q", s)
}
