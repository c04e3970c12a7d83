// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3xml

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

const twoEntryListing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>photos</Name>
  <Prefix>2024/</Prefix>
  <Marker></Marker>
  <MaxKeys>2</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>2024/a.jpg</Key>
    <LastModified>2024-05-01T10:00:00.000Z</LastModified>
    <ETag>&quot;0cc175b9c0f1b6a831c399e269772661&quot;</ETag>
    <Size>1024</Size>
    <Owner>
      <ID>owner-1</ID>
      <DisplayName>alice</DisplayName>
    </Owner>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>2024/b.jpg</Key>
    <LastModified>2024-05-02T11:30:00.000Z</LastModified>
    <ETag>&quot;92eb5ffee6ae2fec3ad71c777531578f&quot;</ETag>
    <Size>2048</Size>
    <Owner>
      <ID>owner-1</ID>
      <DisplayName>alice</DisplayName>
    </Owner>
    <StorageClass>STANDARD_IA</StorageClass>
  </Contents>
</ListBucketResult>`

func ok(body string) *transport.Response {
	return &transport.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body), KeepAlive: true}
}

func ptr[T any](v T) *T { return &v }

func TestListingTwoEntries(t *testing.T) {
	t.Parallel()

	st := NewContextStack()
	got, present, err := Listing{}.Parse(ok(twoEntryListing), st)
	require.NoError(t, err)
	require.True(t, present)

	owner := &s3types.Owner{ID: "owner-1", DisplayName: "alice"}
	want := &s3types.ObjectListing{
		BucketName: "photos",
		Prefix:     "2024/",
		MaxKeys:    2,
		Objects: []s3types.ObjectSummary{
			{
				Bucket:       "photos",
				Key:          "2024/a.jpg",
				Size:         1024,
				LastModified: ptr(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
				ETag:         ptr(`"0cc175b9c0f1b6a831c399e269772661"`),
				Owner:        owner,
				StorageClass: ptr("STANDARD"),
			},
			{
				Bucket:       "photos",
				Key:          "2024/b.jpg",
				Size:         2048,
				LastModified: ptr(time.Date(2024, 5, 2, 11, 30, 0, 0, time.UTC)),
				ETag:         ptr(`"92eb5ffee6ae2fec3ad71c777531578f"`),
				Owner:        owner,
				StorageClass: ptr("STANDARD_IA"),
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.NextMarker)
}

func TestListingSkipFlags(t *testing.T) {
	t.Parallel()

	opts := DecodeOptions{SkipOwner: true, SkipStorageClass: true, SkipLastModified: true, SkipETag: true}
	got, _, err := Listing{Options: opts}.Parse(ok(twoEntryListing), NewContextStack())
	require.NoError(t, err)
	require.Len(t, got.Objects, 2)

	for _, o := range got.Objects {
		assert.Nil(t, o.Owner)
		assert.Nil(t, o.StorageClass)
		assert.Nil(t, o.LastModified)
		assert.Nil(t, o.ETag)
		assert.NotEmpty(t, o.Key)
		assert.NotZero(t, o.Size)
	}
}

func TestListingSkipOwnerOnly(t *testing.T) {
	t.Parallel()

	got, _, err := Listing{Options: DecodeOptions{SkipOwner: true}}.Parse(ok(twoEntryListing), NewContextStack())
	require.NoError(t, err)
	assert.Nil(t, got.Objects[0].Owner)
	require.NotNil(t, got.Objects[0].ETag)
	require.NotNil(t, got.Objects[0].StorageClass)
	assert.Equal(t, "STANDARD", *got.Objects[0].StorageClass)
}

func listingWith(n int, truncated bool) string {
	var b strings.Builder
	b.WriteString(`<ListBucketResult><Name>big</Name><MaxKeys>1000</MaxKeys>`)
	fmt.Fprintf(&b, `<IsTruncated>%t</IsTruncated>`, truncated)
	for i := range n {
		fmt.Fprintf(&b, `<Contents><Key>k%05d</Key><Size>%d</Size><Owner><ID>o</ID></Owner></Contents>`, i, i)
	}
	b.WriteString(`</ListBucketResult>`)
	return b.String()
}

func TestListingDepthIndependentOfItemCount(t *testing.T) {
	t.Parallel()

	st := NewContextStack()
	_, _, err := Listing{}.Parse(ok(listingWith(1, false)), st)
	require.NoError(t, err)
	small := st.MaxDepth()

	got, _, err := Listing{}.Parse(ok(listingWith(5000, false)), st)
	require.NoError(t, err)
	require.Len(t, got.Objects, 5000)

	assert.Equal(t, small, st.MaxDepth())
	// document, ListBucketResult, Contents, Owner, ID
	assert.Equal(t, 5, st.MaxDepth())
	assert.Equal(t, 1, st.Depth())
}

func TestListingNextMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "explicit",
			body: `<ListBucketResult><IsTruncated>true</IsTruncated><NextMarker>n</NextMarker>` +
				`<Contents><Key>a</Key><Size>1</Size></Contents></ListBucketResult>`,
			want: "n",
		},
		{
			name: "derived from last key",
			body: listingWith(3, true),
			want: "k00002",
		},
		{
			name: "derived from last common prefix",
			body: `<ListBucketResult><IsTruncated>true</IsTruncated><Delimiter>/</Delimiter>` +
				`<CommonPrefixes><Prefix>a/</Prefix></CommonPrefixes>` +
				`<CommonPrefixes><Prefix>b/</Prefix></CommonPrefixes></ListBucketResult>`,
			want: "b/",
		},
		{
			name: "cleared when not truncated",
			body: `<ListBucketResult><IsTruncated>false</IsTruncated><NextMarker>stale</NextMarker></ListBucketResult>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Listing{}.Parse(ok(tt.body), NewContextStack())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.NextMarker)
		})
	}
}

func TestListingCommonPrefixes(t *testing.T) {
	t.Parallel()

	body := `<ListBucketResult><Name>b</Name><Delimiter>/</Delimiter><IsTruncated>false</IsTruncated>` +
		`<Contents><Key>top.txt</Key><Size>3</Size></Contents>` +
		`<CommonPrefixes><Prefix>dir1/</Prefix></CommonPrefixes>` +
		`<CommonPrefixes><Prefix>dir2/</Prefix></CommonPrefixes></ListBucketResult>`
	got, _, err := Listing{}.Parse(ok(body), NewContextStack())
	require.NoError(t, err)
	assert.Equal(t, []string{"dir1/", "dir2/"}, got.CommonPrefixes)
	assert.Equal(t, "/", got.Delimiter)
	require.Len(t, got.Objects, 1)
	assert.Equal(t, "b", got.Objects[0].Bucket)
}

func TestListingURLEncoding(t *testing.T) {
	t.Parallel()

	body := `<ListBucketResult><Name>b</Name><Prefix>my+dir%2F</Prefix><EncodingType>url</EncodingType>` +
		`<IsTruncated>true</IsTruncated><Delimiter>%2F</Delimiter>` +
		`<Contents><Key>my+dir%2Fcaf%C3%A9.txt</Key><Size>1</Size></Contents>` +
		`<CommonPrefixes><Prefix>my+dir%2Fsub%2F</Prefix></CommonPrefixes></ListBucketResult>`
	got, _, err := Listing{}.Parse(ok(body), NewContextStack())
	require.NoError(t, err)

	assert.Equal(t, "my dir/", got.Prefix)
	assert.Equal(t, "/", got.Delimiter)
	assert.Equal(t, "my dir/café.txt", got.Objects[0].Key)
	assert.Equal(t, []string{"my dir/sub/"}, got.CommonPrefixes)
	assert.Equal(t, "my dir/café.txt", got.NextMarker)
}

func TestListingSkipsUnknownElements(t *testing.T) {
	t.Parallel()

	body := `<ListBucketResult><Name>b</Name><KeyCount>1</KeyCount>` +
		`<Extension><Nested><Deeper>x</Deeper></Nested></Extension>` +
		`<IsTruncated>false</IsTruncated>` +
		`<Contents><Key>k</Key><ChecksumAlgorithm>CRC32</ChecksumAlgorithm><Size>1</Size>` +
		`<RestoreStatus><IsRestoreInProgress>false</IsRestoreInProgress></RestoreStatus></Contents>` +
		`</ListBucketResult>`
	got, _, err := Listing{}.Parse(ok(body), NewContextStack())
	require.NoError(t, err)
	require.Len(t, got.Objects, 1)
	assert.Equal(t, "k", got.Objects[0].Key)
}

func TestListingMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty body":           ``,
		"wrong root":           `<ListAllMyBucketsResult></ListAllMyBucketsResult>`,
		"element inside leaf":  `<ListBucketResult><Name><b>x</b></Name></ListBucketResult>`,
		"bad max keys":         `<ListBucketResult><MaxKeys>many</MaxKeys></ListBucketResult>`,
		"bad truncated":        `<ListBucketResult><IsTruncated>maybe</IsTruncated></ListBucketResult>`,
		"bad size":             `<ListBucketResult><Contents><Key>k</Key><Size>-x</Size></Contents></ListBucketResult>`,
		"bad timestamp":        `<ListBucketResult><Contents><LastModified>yesterday</LastModified></Contents></ListBucketResult>`,
		"premature end":        `<ListBucketResult><Name>b</Name><Contents><Key>k</Key>`,
		"not xml":              `this is not xml`,
		"second root":          `<ListBucketResult></ListBucketResult><ListBucketResult></ListBucketResult>`,
		"truncated no marker":  `<ListBucketResult><IsTruncated>true</IsTruncated></ListBucketResult>`,
		"bad url encoding":     `<ListBucketResult><EncodingType>url</EncodingType><Prefix>%zz</Prefix></ListBucketResult>`,
		"mismatched end tag":   `<ListBucketResult><Name>b</Prefix></ListBucketResult>`,
		"error document shape": `<Error><Code>NoSuchKey</Code></Error>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			got, present, err := Listing{}.Parse(ok(body), NewContextStack())
			var de *s3err.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Nil(t, got)
			assert.False(t, present)
		})
	}
}

func TestErrorEnvelopeNoSuchKey(t *testing.T) {
	t.Parallel()

	resp := &transport.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{},
		Body: []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NoSuchKey</Code>
  <Message>The specified key does not exist.</Message>
  <Key>missing.txt</Key>
  <RequestId>4442587FB7D0A2F9</RequestId>
  <HostId>host-id</HostId>
</Error>`),
	}
	got, present, err := ErrorEnvelope{}.Parse(resp, NewContextStack())
	require.NoError(t, err)
	require.True(t, present)

	assert.Equal(t, "NoSuchKey", got.Code)
	assert.Equal(t, "The specified key does not exist.", got.Message)
	assert.Equal(t, "4442587FB7D0A2F9", got.RequestID)
	assert.Equal(t, "host-id", got.HostID)
	assert.Equal(t, http.StatusNotFound, got.HTTPCode)
	assert.ErrorIs(t, got, s3err.ErrNoSuchKey)
}

func TestErrorEnvelopeFallsBackToHeaders(t *testing.T) {
	t.Parallel()

	resp := &transport.Response{
		StatusCode: http.StatusForbidden,
		Header:     http.Header{"X-Amz-Request-Id": []string{"hdr-req"}, "X-Amz-Id-2": []string{"hdr-host"}},
		Body:       []byte(`<Error><Code>AccessDenied</Code></Error>`),
	}
	got, _, err := ErrorEnvelope{}.Parse(resp, NewContextStack())
	require.NoError(t, err)
	assert.Equal(t, "hdr-req", got.RequestID)
	assert.Equal(t, "hdr-host", got.HostID)
	assert.Empty(t, got.Message)
}

func TestErrorEnvelopeWithoutCode(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`<Error><Message>no code</Message></Error>`,
		``,
		`<html><body>Bad Gateway</body></html>`,
	} {
		_, present, err := ErrorEnvelope{}.Parse(&transport.Response{StatusCode: 502, Body: []byte(body)}, NewContextStack())
		var de *s3err.DecodeError
		assert.ErrorAs(t, err, &de, body)
		assert.False(t, present)
	}
}

func TestStackReusedAcrossParsers(t *testing.T) {
	t.Parallel()

	st := NewContextStack()
	_, _, err := Listing{}.Parse(ok(`<ListBucketResult><Name>b</Name><Contents><Key>k`), st)
	require.Error(t, err)

	got, _, err := ErrorEnvelope{}.Parse(&transport.Response{StatusCode: 404, Body: []byte(`<Error><Code>NoSuchBucket</Code></Error>`)}, st)
	require.NoError(t, err)
	assert.Equal(t, "NoSuchBucket", got.Code)

	listing, _, err := Listing{}.Parse(ok(twoEntryListing), st)
	require.NoError(t, err)
	assert.Len(t, listing.Objects, 2)
}

func TestBytesAndDiscard(t *testing.T) {
	t.Parallel()

	body, present, err := Bytes{}.Parse(ok("<not-parsed>"), nil)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "<not-parsed>", string(body))

	body, present, err = Bytes{}.Parse(&transport.Response{StatusCode: 200}, nil)
	require.NoError(t, err)
	assert.True(t, present)
	assert.NotNil(t, body)
	assert.Empty(t, body)

	_, present, err = Discard{}.Parse(ok("ignored"), nil)
	require.NoError(t, err)
	assert.False(t, present)
}
