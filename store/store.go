// Package store implements the local key/value store each DHT node owns,
// per spec §4.5: an ordered map from key to (value, keyhash) supporting
// arc-range scans and deletes. Grounded on
// flavio-simonelli-KoordeDHT/internal/storage's Storage interface and
// in-memory implementation, generalized from a single Between(from, to)
// query into the wrap-aware open/closed arc predicate spec.md requires.
package store

import (
	"sort"
	"sync"

	"github.com/chordring/chord"
)

// Store is the contract the node core requires from the backing key/value
// store. Any ordered map keyed on the key hash is sufficient; durability is
// not required (spec §4.5).
type Store interface {
	Insert(records []chord.Record)
	SelectByArc(start, end *chord.ID) []chord.Record
	SelectByKey(key string) (chord.Record, bool)
	DeleteByArc(start, end *chord.ID) []chord.Record
	DeleteAll()
	Len() int
}

// Memory is a concurrency-safe, in-memory Store keyed by record key; an
// arc-range scan walks every record and returns the matches sorted by key
// hash. Grounded on
// internal/storage/memory.go's sync.RWMutex-guarded map.
type Memory struct {
	mu   sync.RWMutex
	data map[string]chord.Record // keyed by Record.Key
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]chord.Record)}
}

// Insert stores each record, overwriting any existing value for the same key.
func (m *Memory) Insert(records []chord.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.data[r.Key] = r
	}
}

// SelectByKey returns the record for an exact key match.
func (m *Memory) SelectByKey(key string) (chord.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[key]
	return r, ok
}

// SelectByArc returns records whose key hash falls in the arc predicate
// spec §4.5 defines: both bounds set and start <= end selects (start, end];
// both set and start > end selects keyhash > start OR keyhash <= end; either
// bound nil selects everything, ordered by key hash.
func (m *Memory) SelectByArc(start, end *chord.ID) []chord.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return selectMatching(m.data, start, end)
}

// DeleteByArc removes and returns the records matching the same predicate as
// SelectByArc.
func (m *Memory) DeleteByArc(start, end *chord.ID) []chord.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := selectMatching(m.data, start, end)
	for _, r := range matched {
		delete(m.data, r.Key)
	}
	return matched
}

// DeleteAll empties the store, used when a node leaves gracefully.
func (m *Memory) DeleteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]chord.Record)
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func selectMatching(data map[string]chord.Record, start, end *chord.ID) []chord.Record {
	var out []chord.Record
	for _, r := range data {
		if matchesArc(r.KeyHash, start, end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyHash < out[j].KeyHash })
	return out
}

func matchesArc(keyHash chord.ID, start, end *chord.ID) bool {
	if start == nil || end == nil {
		return true
	}
	if *start <= *end {
		return keyHash > *start && keyHash <= *end
	}
	return keyHash > *start || keyHash <= *end
}
