// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeeDigitalWorks/zaps3/pkg/logger"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3xml"
	"github.com/LeeDigitalWorks/zaps3/pkg/transport"
)

var stackPool = sync.Pool{
	New: func() any { return s3xml.NewContextStack() },
}

// completionSink turns the terminal event of one exchange into the
// operation's Outcome. OnSuccess and OnError share one flag; only the
// first call has any effect.
type completionSink[T any] struct {
	notified atomic.Bool

	op         string
	invocation string
	parser     s3xml.Parser[T]
	future     *Future[T]
	metrics    *metrics
	start      time.Time
}

func newCompletionSink[T any](op, invocation string, parser s3xml.Parser[T], m *metrics) *completionSink[T] {
	return &completionSink[T]{
		op:         op,
		invocation: invocation,
		parser:     parser,
		future:     newFuture[T](),
		metrics:    m,
		start:      time.Now(),
	}
}

func (s *completionSink[T]) OnSuccess(resp *transport.Response) {
	if !s.notified.CompareAndSwap(false, true) {
		return
	}
	s.resolve(s.outcomeOf(resp))
}

func (s *completionSink[T]) OnError(err error) {
	if !s.notified.CompareAndSwap(false, true) {
		return
	}
	s.resolve(Outcome[T]{Err: err})
}

func (s *completionSink[T]) outcomeOf(resp *transport.Response) Outcome[T] {
	st := stackPool.Get().(*s3xml.ContextStack)
	defer func() {
		st.Reset()
		stackPool.Put(st)
	}()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		v, present, err := s.parser.Parse(resp, st)
		if err != nil {
			return Outcome[T]{Err: err}
		}
		return Outcome[T]{Value: v, Present: present}
	}

	e, _, err := s3xml.ErrorEnvelope{}.Parse(resp, st)
	if err != nil {
		return Outcome[T]{Err: &s3err.UnparseableError{StatusCode: resp.StatusCode, Cause: err}}
	}
	return Outcome[T]{Err: e}
}

func (s *completionSink[T]) resolve(o Outcome[T]) {
	outcome := outcomeSuccess
	switch {
	case o.Err != nil:
		outcome = outcomeError
	case !o.Present:
		outcome = outcomeEmpty
	}
	s.metrics.observe(s.op, s.start, outcome)

	if o.Err != nil {
		logger.Debug().
			Str("operation", s.op).
			Str("invocation_id", s.invocation).
			Err(o.Err).
			Msg("request failed")
	} else {
		logger.Trace().
			Str("operation", s.op).
			Str("invocation_id", s.invocation).
			Dur("elapsed", time.Since(s.start)).
			Msg("request complete")
	}
	s.future.complete(o)
}
