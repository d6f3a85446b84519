// Package journal keeps a local, TTL-bounded record of emitted events for
// inspection and replay during incident debugging. It is strictly optional
// and never consulted by the dedup path.
package journal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
)

const dirMode = 0o755

var jsonFast = jsoniter.ConfigFastest

// Journal is a badger-backed append log keyed <poller>:<activation-id>.
type Journal struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or reopens a journal at path. Entries expire after ttl.
func Open(path string, ttl time.Duration) (*Journal, error) {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return nil, fmt.Errorf("create journal path: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db, ttl: ttl}, nil
}

// Append records one emitted event under its poller and activation ID.
func (j *Journal) Append(pollerName, activationID string, event map[string]any) error {
	payload, err := jsonFast.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	key := []byte(pollerName + ":" + activationID)

	return j.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, payload)
		if j.ttl > 0 {
			entry = entry.WithTTL(j.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// ForEach visits every live entry for one poller, in key order.
func (j *Journal) ForEach(pollerName string, fn func(activationID string, payload []byte) error) error {
	prefix := []byte(pollerName + ":")

	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), pollerName+":")
			if err := item.Value(func(val []byte) error {
				return fn(id, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountByPoller tallies live entries per poller, like a startup stats dump.
func (j *Journal) CountByPoller() (map[string]int64, error) {
	counts := make(map[string]int64)

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			name, _, ok := strings.Cut(key, ":")
			if !ok {
				continue
			}
			counts[name]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Close flushes and closes the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}
