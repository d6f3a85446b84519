// Package track owns the watermark and the seen-ID set that together keep
// overlapping poll windows from emitting the same activation twice.
package track

import (
	"sort"
	"sync"
	"time"
)

// MaxProcessingMillis is the platform's maximum activation processing
// duration. The watermark trails a record's end timestamp by this much so a
// slow activation still falls inside the next query window.
const MaxProcessingMillis = 300000

// Tracker holds the only mutable shared state in the system. Every read and
// write goes through one mutex; a cycle's decode-and-commit step holds it
// from Begin to Commit so concurrent cycle completions cannot interleave.
type Tracker struct {
	mu        sync.Mutex
	watermark int64
	seen      map[string]struct{}
}

// New starts the watermark at now and the seen set empty.
func New() *Tracker {
	return NewAt(time.Now().UnixMilli())
}

// NewAt starts the watermark at an explicit millisecond timestamp.
func NewAt(watermark int64) *Tracker {
	return &Tracker{
		watermark: watermark,
		seen:      make(map[string]struct{}),
	}
}

// Watermark reads the current watermark.
func (t *Tracker) Watermark() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermark
}

// SeenIDs snapshots the seen-ID set, sorted.
func (t *Tracker) SeenIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cycle accumulates one poll cycle's record scan. It holds the tracker's
// mutex from Begin until Commit.
type Cycle struct {
	t        *Tracker
	ids      map[string]struct{}
	max      int64
	hasNovel bool
}

// Begin opens a cycle's decode-and-commit step, locking the tracker.
func (t *Tracker) Begin() *Cycle {
	t.mu.Lock()
	return &Cycle{t: t, ids: make(map[string]struct{})}
}

// Observe records one decoded identifier. The identifier always joins the
// current cycle's collector; the return value says whether it was absent
// from the prior cycle's set, i.e. whether the record should be emitted.
func (c *Cycle) Observe(id string) bool {
	c.ids[id] = struct{}{}
	_, dup := c.t.seen[id]
	return !dup
}

// Advance folds a novel record's end timestamp into the watermark
// candidate. Call only for records Observe reported as novel.
func (c *Cycle) Advance(endMillis int64) {
	candidate := endMillis - MaxProcessingMillis
	if !c.hasNovel || candidate > c.max {
		c.max = candidate
	}
	c.hasNovel = true
}

// Commit atomically replaces the seen-ID set with this cycle's collector
// (full replacement, never a union) and, when any novel record advanced the
// candidate, commits the watermark. Unlocks the tracker.
func (c *Cycle) Commit() {
	c.t.seen = c.ids
	if c.hasNovel {
		c.t.watermark = c.max
	}
	c.t.mu.Unlock()
	c.t = nil
}
