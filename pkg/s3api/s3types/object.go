package s3types

import "io"

// PutObjectRequest is the input of a PutObject call.
//
// A Body implementing io.ReadSeeker is hashed before sending so the request
// carries Content-MD5 and a signed payload hash. Other readers are sent with
// ContentLength as given; when ContentLength is zero they are buffered first.
type PutObjectRequest struct {
	Bucket   string
	Key      string
	Body     io.Reader
	Metadata ObjectMetadata
}

// ObjectMetadata is the set of request headers a PutObject call can carry.
type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	// ContentMD5 is base64 encoded. Computed for seekable bodies when empty.
	ContentMD5 string
	// ContentSHA256 is hex encoded. Computed for seekable bodies when empty.
	ContentSHA256 string
	StorageClass  string
	// UserMetadata is sent as x-amz-meta-<name> headers.
	UserMetadata map[string]string
	Checksum     ChecksumAlgorithm
}
