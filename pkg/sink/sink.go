// Package sink delivers materialized events to their destination. Ordering
// within one poll cycle follows decode order; ordering across cycles is not
// guaranteed.
package sink

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// jsonFast is the shared high-performance JSON API.
var jsonFast = jsoniter.ConfigFastest

// Sink accepts one materialized event at a time.
type Sink interface {
	Emit(ctx context.Context, event map[string]any) error
	Close() error
}

// Stdout writes one JSON line per event. Development sink.
type Stdout struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStdout() *Stdout { return &Stdout{out: os.Stdout} }

// NewWriter is NewStdout with an explicit destination.
func NewWriter(w io.Writer) *Stdout { return &Stdout{out: w} }

func (s *Stdout) Emit(_ context.Context, event map[string]any) error {
	payload, err := jsonFast.Marshal(event)
	if err != nil {
		log.Printf("[Sink] json marshal failed: %v", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(payload, '\n')); err != nil {
		return err
	}
	return nil
}

func (s *Stdout) Close() error { return nil }
