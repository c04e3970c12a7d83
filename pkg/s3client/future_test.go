// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureCompletesOnce(t *testing.T) {
	t.Parallel()

	f := newFuture[int]()
	_, ok := f.Outcome()
	assert.False(t, ok)

	assert.True(t, f.complete(Outcome[int]{Value: 1, Present: true}))
	assert.False(t, f.complete(Outcome[int]{Err: errors.New("late")}))

	o, ok := f.Outcome()
	require.True(t, ok)
	assert.Equal(t, 1, o.Value)
	assert.True(t, o.Present)
	assert.NoError(t, o.Err)

	select {
	case <-f.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestFutureAwait(t *testing.T) {
	t.Parallel()

	f := newFuture[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.complete(Outcome[string]{Value: "v", Present: true})
	}()

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestFutureAwaitAbandoned(t *testing.T) {
	t.Parallel()

	f := newFuture[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := f.Outcome()
	assert.False(t, ok)
}

func TestFutureOnDone(t *testing.T) {
	t.Parallel()

	f := newFuture[int]()
	var calls atomic.Int32
	f.OnDone(func(o Outcome[int]) {
		assert.Equal(t, 7, o.Value)
		calls.Add(1)
	})
	f.complete(Outcome[int]{Value: 7, Present: true})
	assert.EqualValues(t, 1, calls.Load())

	f.OnDone(func(o Outcome[int]) {
		assert.Equal(t, 7, o.Value)
		calls.Add(1)
	})
	assert.EqualValues(t, 2, calls.Load())
}

func TestFutureConcurrentComplete(t *testing.T) {
	t.Parallel()

	for range 100 {
		f := newFuture[int]()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.complete(Outcome[int]{Value: i, Present: true}) {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	}
}

func TestCompletedFuture(t *testing.T) {
	t.Parallel()

	f := failed[int](ErrInvalidRequest)
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
