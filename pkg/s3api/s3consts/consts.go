// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3consts

// http://docs.aws.amazon.com/AmazonS3/latest/dev/UploadingObjects.html
const (
	// MaxObjectSize is the maximum object size per PUT request (5GiB)
	MaxObjectSize = 1024 * 1024 * 1024 * 5
	// DefaultMaxKeys is the page size the store uses when max-keys is omitted.
	DefaultMaxKeys = 1000

	// --- Core request / tracing ---
	XAmzDate        = "x-amz-date"
	XAmzRequestID   = "x-amz-request-id"
	XAmzId2         = "x-amz-id-2"
	XAmzSecurityTok = "x-amz-security-token"

	// AmzSdkInvocationID correlates one logical operation across log lines.
	AmzSdkInvocationID = "amz-sdk-invocation-id"

	// --- Content / payload ---
	XAmzContentSHA256 = "x-amz-content-sha256"

	// --- Metadata ---
	XAmzMetaPrefix = "x-amz-meta-"

	// --- Storage class ---
	XAmzStorageClass = "x-amz-storage-class"

	// --- Checksum ---
	XAmzChecksumCRC64NVME = "x-amz-checksum-crc64nvme"
	XAmzSdkChecksumAlgo   = "x-amz-sdk-checksum-algorithm"
)

// Presigned URL query parameters.
const (
	QueryAlgorithm     = "X-Amz-Algorithm"
	QueryCredential    = "X-Amz-Credential"
	QueryDate          = "X-Amz-Date"
	QueryExpires       = "X-Amz-Expires"
	QuerySignedHeaders = "X-Amz-SignedHeaders"
	QuerySignature     = "X-Amz-Signature"
	QuerySecurityToken = "X-Amz-Security-Token"
)

// ListObjects (v1) query parameters.
const (
	QueryPrefix       = "prefix"
	QueryDelimiter    = "delimiter"
	QueryMarker       = "marker"
	QueryMaxKeys      = "max-keys"
	QueryEncodingType = "encoding-type"

	// EncodingTypeURL asks the store to URL-encode keys in listing responses.
	EncodingTypeURL = "url"
)

// Payload hashes.
const (
	UnsignedPayload = "UNSIGNED-PAYLOAD"
	// EmptySHA256 is the hex SHA-256 of an empty payload.
	EmptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Storage class values
const (
	StorageClassStandard           = "STANDARD"
	StorageClassReducedRedundancy  = "REDUCED_REDUNDANCY"
	StorageClassStandardIA         = "STANDARD_IA"
	StorageClassOnezoneIA          = "ONEZONE_IA"
	StorageClassIntelligentTiering = "INTELLIGENT_TIERING"
	StorageClassGlacier            = "GLACIER"
	StorageClassDeepArchive        = "DEEP_ARCHIVE"
)

// Checksum algorithm values
const (
	ChecksumAlgoCRC64NVME = "CRC64NVME"
)
