// Package event turns decoded activation records and transport failures
// into output events and hands them to the sink.
package event

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/siqueiraa/WhiskFlow/pkg/sink"
	"github.com/siqueiraa/WhiskFlow/pkg/whisk"
)

// FailureTag marks events produced by the transport failure path.
const FailureTag = "_request_failure"

// Meta carries the per-cycle context every event's metadata is built from.
type Meta struct {
	Request whisk.Request
	Took    time.Duration
	Code    int
	Headers http.Header
	Retries int
}

// Materializer builds output events for one poller.
type Materializer struct {
	name          string
	host          string
	target        string // body nesting field, "" merges top-level
	metadataField string // "" disables metadata capture
	sink          sink.Sink
}

// New creates a materializer. host is the local host identity attached to
// metadata; target and metadataField follow the poller definition.
func New(name, host, target, metadataField string, s sink.Sink) *Materializer {
	return &Materializer{
		name:          name,
		host:          host,
		target:        target,
		metadataField: metadataField,
		sink:          s,
	}
}

// Activation materializes one decoded record and emits it.
func (m *Materializer) Activation(ctx context.Context, rec map[string]any, meta Meta) error {
	ev := make(map[string]any, len(rec)+1)
	if m.target != "" {
		ev[m.target] = rec
	} else {
		for k, v := range rec {
			ev[k] = v
		}
	}

	if m.metadataField != "" {
		ev[m.metadataField] = map[string]any{
			"name":             m.name,
			"host":             m.host,
			"request":          meta.Request.Flatten(),
			"runtime_seconds":  meta.Took.Seconds(),
			"code":             meta.Code,
			"response_headers": flattenHeaders(meta.Headers),
			"times_retried":    meta.Retries,
		}
	}

	return m.sink.Emit(ctx, ev)
}

// Failure materializes a transport failure as a tagged marker event. No
// response was received, so metadata carries no response fields.
func (m *Materializer) Failure(ctx context.Context, req whisk.Request, cause error, took time.Duration) error {
	ev := map[string]any{
		"tags": []string{FailureTag},
		"request_failure": map[string]any{
			"request":         req.Flatten(),
			"name":            m.name,
			"error":           cause.Error(),
			"trace":           whisk.Trace(cause),
			"runtime_seconds": took.Seconds(),
		},
	}

	if m.metadataField != "" {
		ev[m.metadataField] = map[string]any{
			"name":    m.name,
			"host":    m.host,
			"request": req.Flatten(),
		}
	}

	return m.sink.Emit(ctx, ev)
}

func flattenHeaders(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	flat := make(map[string]string, len(h))
	for k, vs := range h {
		flat[k] = strings.Join(vs, ",")
	}
	return flat
}
