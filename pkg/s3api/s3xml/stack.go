// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package s3xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3err"
	"github.com/LeeDigitalWorks/zaps3/pkg/s3api/s3types"
)

// ContextStack is the scratch state of one parse: the open handler frames,
// the text of the current leaf element and the value under construction.
//
// A stack is owned by one goroutine for the duration of a single Parse and
// is reset at the start of each one, so it can be pooled and reused.
type ContextStack struct {
	frames   []frame
	text     []byte
	leaf     string
	inLeaf   bool
	rootSeen bool
	maxDepth int

	opts    DecodeOptions
	listing *s3types.ObjectListing
	summary *s3types.ObjectSummary
	owner   *s3types.Owner
	errDoc  *s3err.Error
}

type frame struct {
	h    handler
	name string
}

func NewContextStack() *ContextStack {
	return &ContextStack{
		frames: make([]frame, 0, 8),
		text:   make([]byte, 0, 256),
	}
}

// Reset clears all parse state. Buffers keep their capacity.
func (st *ContextStack) Reset() {
	clear(st.frames)
	st.frames = st.frames[:0]
	st.text = st.text[:0]
	st.leaf = ""
	st.inLeaf = false
	st.rootSeen = false
	st.maxDepth = 0
	st.opts = DecodeOptions{}
	st.listing = nil
	st.summary = nil
	st.owner = nil
	st.errDoc = nil
}

// MaxDepth reports the deepest nesting reached by the last parse, counting
// the document frame and the leaf element being read.
func (st *ContextStack) MaxDepth() int {
	return st.maxDepth
}

// Depth reports the number of open frames.
func (st *ContextStack) Depth() int {
	return len(st.frames)
}

func (st *ContextStack) push(h handler, name string) {
	st.frames = append(st.frames, frame{h: h, name: name})
	st.maxDepth = max(st.maxDepth, len(st.frames))
}

func (st *ContextStack) top() frame {
	return st.frames[len(st.frames)-1]
}

func (st *ContextStack) element() string {
	if st.inLeaf {
		return st.leaf
	}
	if len(st.frames) == 0 {
		return ""
	}
	return st.top().name
}

// decode runs the token loop over body with root as the document handler.
// The caller must Reset the stack and install its target first.
func (st *ContextStack) decode(body []byte, root handler) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	st.push(root, "")

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &s3err.DecodeError{Element: st.element(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if st.inLeaf {
				return s3err.NewDecodeError(st.leaf, "unexpected element <%s> inside a text element", name)
			}
			child, err := st.top().h.start(st, name)
			if err != nil {
				return err
			}
			if child != nil {
				st.push(child, name)
				continue
			}
			st.inLeaf = true
			st.leaf = name
			st.text = st.text[:0]
			st.maxDepth = max(st.maxDepth, len(st.frames)+1)

		case xml.EndElement:
			if st.inLeaf {
				st.inLeaf = false
				if err := st.top().h.end(st, st.leaf, string(st.text)); err != nil {
					return err
				}
				continue
			}
			if len(st.frames) < 2 {
				return s3err.NewDecodeError(t.Name.Local, "unbalanced end element")
			}
			f := st.top()
			st.frames[len(st.frames)-1] = frame{}
			st.frames = st.frames[:len(st.frames)-1]
			if err := f.h.close(st); err != nil {
				return err
			}

		case xml.CharData:
			if st.inLeaf {
				st.text = append(st.text, t...)
			}
		}
	}

	if st.inLeaf || len(st.frames) != 1 {
		return s3err.NewDecodeError(st.element(), "premature end of document")
	}
	if !st.rootSeen {
		return s3err.NewDecodeError("", "empty document")
	}
	return nil
}

func trimText(s string) string {
	return strings.TrimSpace(s)
}
