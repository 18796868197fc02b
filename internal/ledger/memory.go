package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Memory is a process-local Ledger. Entries are lost on restart.
//
// The underlying LRU is only read through Peek, which never touches recency,
// so eviction order is pure insertion order.
type Memory struct {
	mu       sync.Mutex
	entries  *simplelru.LRU[string, *Entry]
	inflight map[string]struct{}
	Now      func() time.Time
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates a Memory ledger holding at most maxEntries events.
// A non-positive size falls back to DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := simplelru.NewLRU[string, *Entry](maxEntries, nil)
	if err != nil {
		// NewLRU only fails for a non-positive size.
		panic(fmt.Sprintf("ledger: %v", err))
	}
	return &Memory{
		entries:  entries,
		inflight: make(map[string]struct{}),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Lookup returns a copy of the entry for id.
func (m *Memory) Lookup(_ context.Context, id string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Peek(id)
	if !ok {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

// Record inserts or overwrites the entry for id. Overwriting keeps the
// original insertion position.
func (m *Memory) Record(_ context.Context, id string, processed bool) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries.Peek(id); ok {
		e.Processed = processed
		e.Timestamp = now
		return nil
	}
	m.entries.Add(id, &Entry{Timestamp: now, Processed: processed})
	return nil
}

// Claim marks id as in flight until release is called.
func (m *Memory) Claim(_ context.Context, id string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inflight[id]; busy {
		return nil, false, nil
	}
	m.inflight[id] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.inflight, id)
			m.mu.Unlock()
		})
	}
	return release, true, nil
}

// Len returns the number of recorded events.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len(), nil
}

// Recent returns up to n of the newest entries, oldest first.
func (m *Memory) Recent(_ context.Context, n int) ([]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.entries.Keys()
	if n >= 0 && len(keys) > n {
		keys = keys[len(keys)-n:]
	}

	out := make([]Status, 0, len(keys))
	for _, k := range keys {
		if e, ok := m.entries.Peek(k); ok {
			out = append(out, Status{EventID: k, Entry: *e})
		}
	}
	return out, nil
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}
