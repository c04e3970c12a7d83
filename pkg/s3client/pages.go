// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// ErrMarkerNotAdvancing is returned by Pages when a truncated page names
// the marker that produced it as its next marker.
var ErrMarkerNotAdvancing = errors.New("listing marker did not advance")

// Pages iterates over a listing page by page, starting at req. Iteration
// ends after the first page that is not truncated, or with the first error.
func (c *Client) Pages(ctx context.Context, req *s3types.ListObjectsRequest) iter.Seq2[*s3types.ObjectListing, error] {
	return func(yield func(*s3types.ObjectListing, error) bool) {
		var marker string
		if req != nil {
			marker = req.Marker
		}
		page, err := c.ListObjects(ctx, req).Await(ctx)
		for {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) || !page.Truncated {
				return
			}
			if page.NextMarker == marker {
				yield(nil, fmt.Errorf("%w: %q", ErrMarkerNotAdvancing, marker))
				return
			}
			marker = page.NextMarker
			page, err = c.ListNextBatchOfObjects(ctx, page).Await(ctx)
		}
	}
}

// ListAll collects every object and common prefix of a listing.
func (c *Client) ListAll(ctx context.Context, req *s3types.ListObjectsRequest) ([]s3types.ObjectSummary, []string, error) {
	var objects []s3types.ObjectSummary
	var prefixes []string
	for page, err := range c.Pages(ctx, req) {
		if err != nil {
			return nil, nil, err
		}
		objects = append(objects, page.Objects...)
		prefixes = append(prefixes, page.CommonPrefixes...)
	}
	return objects, prefixes, nil
}
