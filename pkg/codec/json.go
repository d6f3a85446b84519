// Package codec turns raw response bodies into decoded activation records.
package codec

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// jsonFast is the shared high-performance JSON API.
var jsonFast = jsoniter.ConfigFastest

// Decoder yields records one at a time, in arrival order. It is finite,
// single-pass and not restartable.
type Decoder interface {
	// Next returns the next record, or ok=false when the sequence is
	// exhausted or a decode error occurred (check Err).
	Next() (map[string]any, bool)
	// Err reports the first decode error, if any.
	Err() error
}

// Codec decodes one response body into a lazy record sequence. A decode
// failure is a local error for that response, never process-fatal.
type Codec interface {
	Decode(body []byte) (Decoder, error)
}

// JSON decodes a top-level JSON array of activation objects lazily. A
// top-level object body yields a single record.
type JSON struct{}

func NewJSON() *JSON { return &JSON{} }

func (c *JSON) Decode(body []byte) (Decoder, error) {
	if len(body) == 0 {
		return &jsonStream{done: true}, nil
	}
	it := jsoniter.ParseBytes(jsonFast, body)

	switch it.WhatIsNext() {
	case jsoniter.ArrayValue:
		return &jsonStream{it: it, array: true}, nil
	case jsoniter.ObjectValue:
		return &jsonStream{it: it}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON body: want array or object")
	}
}

type jsonStream struct {
	it      *jsoniter.Iterator
	array   bool
	started bool
	done    bool
	err     error
}

func (s *jsonStream) Next() (map[string]any, bool) {
	if s.done {
		return nil, false
	}

	if s.array {
		if !s.it.ReadArray() {
			s.done = true
			s.err = streamErr(s.it)
			return nil, false
		}
	} else {
		// single-object body: one record, then done
		if s.started {
			s.done = true
			return nil, false
		}
	}
	s.started = true

	var rec map[string]any
	s.it.ReadVal(&rec)
	if err := streamErr(s.it); err != nil {
		s.done = true
		s.err = err
		return nil, false
	}
	return rec, true
}

func (s *jsonStream) Err() error { return s.err }

func streamErr(it *jsoniter.Iterator) error {
	if it.Error == nil {
		return nil
	}
	// a well-formed body terminates on the closing bracket, so hitting the
	// end of the buffer means the body was cut short
	if errors.Is(it.Error, io.EOF) {
		return fmt.Errorf("unexpected end of JSON body")
	}
	return it.Error
}
