// Package engine runs poll cycles: build a request at the current
// watermark, fetch, decode, dedup against the prior cycle, commit tracker
// state and emit the surviving records.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/siqueiraa/WhiskFlow/pkg/codec"
	"github.com/siqueiraa/WhiskFlow/pkg/event"
	"github.com/siqueiraa/WhiskFlow/pkg/journal"
	"github.com/siqueiraa/WhiskFlow/pkg/track"
	"github.com/siqueiraa/WhiskFlow/pkg/whisk"
)

// record fields the dedup/watermark logic depends on
const (
	idField  = "activationId"
	endField = "end"
)

// Coordinator executes poll cycles for one poller. Cycle starts happen on
// the scheduler's timeline; the fetch and everything after it run in a
// goroutine so a slow platform never blocks the next tick.
type Coordinator struct {
	name      string
	conn      whisk.Connection
	transport whisk.Transport
	codec     codec.Codec
	tracker   *track.Tracker
	events    *event.Materializer
	journal   *journal.Journal // optional

	stopped  atomic.Bool
	cycles   atomic.Int64
	emitted  atomic.Int64
	failures atomic.Int64
}

// New wires a coordinator. journal may be nil.
func New(
	name string,
	conn whisk.Connection,
	transport whisk.Transport,
	c codec.Codec,
	tracker *track.Tracker,
	events *event.Materializer,
	j *journal.Journal,
) *Coordinator {
	return &Coordinator{
		name:      name,
		conn:      conn,
		transport: transport,
		codec:     c,
		tracker:   tracker,
		events:    events,
		journal:   j,
	}
}

// Poll dispatches one cycle and returns without awaiting the network. The
// request is built here, on the scheduling timeline, from the watermark at
// the moment of dispatch.
func (c *Coordinator) Poll(ctx context.Context) {
	if c.stopped.Load() {
		return
	}
	req := whisk.BuildRequest(c.conn, c.tracker.Watermark())
	c.cycles.Add(1)
	go c.execute(ctx, req)
}

// RunCycle runs one full cycle synchronously. Poll is this plus a
// goroutine; tests use it directly.
func (c *Coordinator) RunCycle(ctx context.Context) {
	if c.stopped.Load() {
		return
	}
	req := whisk.BuildRequest(c.conn, c.tracker.Watermark())
	c.cycles.Add(1)
	c.execute(ctx, req)
}

// Stop prevents new cycles and new commits. A completion already past its
// commit point finishes; an in-flight network call is abandoned, not
// awaited.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
}

func (c *Coordinator) execute(ctx context.Context, req whisk.Request) {
	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	took := time.Since(start)

	if c.stopped.Load() {
		return
	}
	if err != nil {
		c.failures.Add(1)
		if emitErr := c.events.Failure(ctx, req, err, took); emitErr != nil {
			log.Printf("[Cycle] %s: failure event not delivered: %v", c.name, emitErr)
		}
		return
	}
	c.handleResponse(ctx, req, resp, took)
}

// handleResponse is the decode-dedup-commit-emit half of a successful
// cycle. The tracker mutex is held from Begin to Commit; sink I/O for the
// surviving records happens after the commit, in decode order.
func (c *Coordinator) handleResponse(ctx context.Context, req whisk.Request, resp *whisk.Response, took time.Duration) {
	dec, err := c.codec.Decode(resp.Body)
	if err != nil {
		// local error for this response; tracker state untouched
		log.Printf("[Cycle] %s: undecodable response (code %d): %v", c.name, resp.Code, err)
		return
	}

	cy := c.tracker.Begin()
	var fresh []map[string]any
	for {
		rec, ok := dec.Next()
		if !ok {
			break
		}
		id := activationID(rec)
		if !cy.Observe(id) {
			continue // emitted by the previous cycle
		}
		if end, hasEnd := endMillis(rec); hasEnd {
			cy.Advance(end)
		} else {
			log.Printf("[Cycle] %s: record %s has no usable %s field", c.name, id, endField)
		}
		fresh = append(fresh, rec)
	}
	if decErr := dec.Err(); decErr != nil {
		// the lazy sequence is single-pass; keep what was scanned
		log.Printf("[Cycle] %s: decode stopped mid-stream: %v", c.name, decErr)
	}
	cy.Commit()

	meta := event.Meta{
		Request: req,
		Took:    took,
		Code:    resp.Code,
		Headers: resp.Headers,
		Retries: resp.Retries,
	}
	for _, rec := range fresh {
		if emitErr := c.events.Activation(ctx, rec, meta); emitErr != nil {
			log.Printf("[Cycle] %s: record dropped, emit failed: %v", c.name, emitErr)
			continue
		}
		c.emitted.Add(1)

		if c.journal != nil {
			if jErr := c.journal.Append(c.name, activationID(rec), rec); jErr != nil {
				log.Printf("[Cycle] %s: journal append failed: %v", c.name, jErr)
			}
		}
	}
}

// LogStats prints cycle counters, on the periodic stats ticker.
func (c *Coordinator) LogStats() {
	log.Printf("[Cycle] %s: cycles=%d emitted=%d failures=%d watermark=%d",
		c.name, c.cycles.Load(), c.emitted.Load(), c.failures.Load(), c.tracker.Watermark())
}

// activationID extracts and stringifies the record identifier.
func activationID(rec map[string]any) string {
	raw, ok := rec[idField]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// endMillis extracts the record's end timestamp. JSON numbers arrive as
// float64; other numeric widths show up from tests and future codecs.
func endMillis(rec map[string]any) (int64, bool) {
	switch v := rec[endField].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}
