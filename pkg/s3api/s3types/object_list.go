package s3types

import (
	"encoding/xml"
	"time"
)

// ListObjectsRequest is the input of a ListObjects (v1) call. A zero
// MaxKeys leaves the page size to the store.
type ListObjectsRequest struct {
	Bucket       string
	Prefix       string
	Delimiter    string
	Marker       string
	MaxKeys      int
	EncodingType string
}

// ObjectListing is one page of a ListObjects result.
//
// When Truncated is false NextMarker is empty. When Truncated is true
// NextMarker is the marker for the following page, taken from the response
// or derived from the last key (or last common prefix) when the store
// omits it.
type ObjectListing struct {
	BucketName     string
	Prefix         string
	Delimiter      string
	Marker         string
	NextMarker     string
	MaxKeys        int
	EncodingType   string
	Truncated      bool
	Objects        []ObjectSummary
	CommonPrefixes []string
}

// Request returns the request that continues this listing after NextMarker.
func (l *ObjectListing) Request() *ListObjectsRequest {
	return &ListObjectsRequest{
		Bucket:       l.BucketName,
		Prefix:       l.Prefix,
		Delimiter:    l.Delimiter,
		Marker:       l.NextMarker,
		MaxKeys:      l.MaxKeys,
		EncodingType: l.EncodingType,
	}
}

// ObjectSummary is one Contents entry of a listing. Pointer fields are nil
// when the element was absent or skipped by the decoder.
type ObjectSummary struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified *time.Time
	ETag         *string
	Owner        *Owner
	StorageClass *string
}

// Owner identifies the owner of an object.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName,omitempty"`
}

// ListObjectsResult represents the XML response for ListObjects (v1)
type ListObjectsResult struct {
	XMLName        xml.Name        `xml:"ListBucketResult"`
	Xmlns          string          `xml:"xmlns,attr"`
	Name           string          `xml:"Name"`
	Prefix         string          `xml:"Prefix"`
	Marker         string          `xml:"Marker"`
	NextMarker     string          `xml:"NextMarker,omitempty"`
	MaxKeys        int             `xml:"MaxKeys"`
	Delimiter      string          `xml:"Delimiter,omitempty"`
	IsTruncated    bool            `xml:"IsTruncated"`
	EncodingType   string          `xml:"EncodingType,omitempty"`
	Contents       []ObjectContent `xml:"Contents"`
	CommonPrefixes []CommonPrefix  `xml:"CommonPrefixes,omitempty"`
}

// ObjectContent represents an object in list responses (v1)
type ObjectContent struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	Owner        *Owner `xml:"Owner,omitempty"`
	StorageClass string `xml:"StorageClass"`
}

// CommonPrefix represents a common prefix in list responses (for delimiter)
type CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}
