// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3xml"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

func testMetrics() *metrics {
	return newMetrics(nil, transport.NewMetrics("test"), func() float64 { return 0 })
}

func TestSinkSuccessStatuses(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	s := newCompletionSink("GetObject", "id", s3xml.Parser[[]byte](s3xml.Bytes{}), m)
	s.OnSuccess(&transport.Response{StatusCode: http.StatusOK, Body: []byte("data")})
	v, err := s.future.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data", string(v))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GetObject", outcomeSuccess)))

	d := newCompletionSink("DeleteObject", "id", s3xml.Parser[struct{}](s3xml.Discard{}), m)
	d.OnSuccess(&transport.Response{StatusCode: http.StatusNoContent})
	o, ok := d.future.Outcome()
	require.True(t, ok)
	assert.False(t, o.Present)
	assert.NoError(t, o.Err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("DeleteObject", outcomeEmpty)))
}

func TestSinkErrorDocument(t *testing.T) {
	t.Parallel()

	s := newCompletionSink("GetObject", "id", s3xml.Parser[[]byte](s3xml.Bytes{}), testMetrics())
	s.OnSuccess(&transport.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{"X-Amz-Request-Id": []string{"REQ1"}},
		Body:       []byte(`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`),
	})

	_, err := s.future.Await(context.Background())
	var e *s3err.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "NoSuchKey", e.Code)
	assert.Equal(t, "REQ1", e.RequestID)
	assert.Equal(t, http.StatusNotFound, e.HTTPCode)
	assert.ErrorIs(t, err, s3err.ErrNoSuchKey)
}

func TestSinkUnparseableError(t *testing.T) {
	t.Parallel()

	s := newCompletionSink("GetObject", "id", s3xml.Parser[[]byte](s3xml.Bytes{}), testMetrics())
	s.OnSuccess(&transport.Response{StatusCode: http.StatusBadGateway, Body: []byte("<html>bad gateway</html>")})

	_, err := s.future.Await(context.Background())
	var ue *s3err.UnparseableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Contains(t, err.Error(), "received unparseable error with code: 502")
	assert.Error(t, ue.Cause)

	var de *s3err.DecodeError
	assert.False(t, errors.As(err, &de))
}

func TestSinkOtherSuccessCodesAreErrors(t *testing.T) {
	t.Parallel()

	s := newCompletionSink("GetObject", "id", s3xml.Parser[[]byte](s3xml.Bytes{}), testMetrics())
	s.OnSuccess(&transport.Response{StatusCode: http.StatusPartialContent, Body: []byte("part")})

	_, err := s.future.Await(context.Background())
	var ue *s3err.UnparseableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusPartialContent, ue.StatusCode)
}

func TestSinkDecodeError(t *testing.T) {
	t.Parallel()

	s := newCompletionSink("ListObjects", "id", s3xml.Parser[*s3types.ObjectListing](s3xml.Listing{}), testMetrics())
	s.OnSuccess(&transport.Response{StatusCode: http.StatusOK, Body: []byte("<ListBucketResult>")})

	_, err := s.future.Await(context.Background())
	var de *s3err.DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestSinkNotifiesOnce(t *testing.T) {
	t.Parallel()

	for range 100 {
		m := testMetrics()
		s := newCompletionSink("GetObject", "id", s3xml.Parser[[]byte](s3xml.Bytes{}), m)

		var wg sync.WaitGroup
		for i := range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					s.OnSuccess(&transport.Response{StatusCode: http.StatusOK, Body: []byte("x")})
				} else {
					s.OnError(errors.New("reset"))
				}
			}()
		}
		wg.Wait()

		total := testutil.ToFloat64(m.requests.WithLabelValues("GetObject", outcomeSuccess)) +
			testutil.ToFloat64(m.requests.WithLabelValues("GetObject", outcomeError))
		require.Equal(t, float64(1), total)
		_, ok := s.future.Outcome()
		require.True(t, ok)
	}
}
