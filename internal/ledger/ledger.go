// Package ledger records which webhook events have been seen and whether
// they were processed to completion.
//
// A ledger is bounded and insertion ordered: once full, recording a new event
// evicts the oldest-inserted one regardless of its processed flag. Claim adds
// a per-event in-flight marker so two concurrent deliveries of the same event
// cannot both run the pipeline.
package ledger

import (
	"context"
	"time"
)

// DefaultMaxEntries bounds the ledger when no explicit size is configured.
const DefaultMaxEntries = 1000

// Entry is the ledger state of one event.
type Entry struct {
	Timestamp time.Time
	Processed bool
}

// Status pairs an event id with its entry, for reporting.
type Status struct {
	EventID string
	Entry
}

// Ledger is the dedup store consulted by the pipeline.
type Ledger interface {
	// Lookup returns the entry for id, or false if the id is unknown.
	Lookup(ctx context.Context, id string) (Entry, bool, error)
	// Record inserts or overwrites the entry for id, evicting the oldest
	// entry first if a new id would exceed capacity.
	Record(ctx context.Context, id string, processed bool) error
	// Claim marks id as in flight. ok is false if another run holds it.
	// The returned release func must be called once the run is over.
	Claim(ctx context.Context, id string) (release func(), ok bool, err error)
	// Len returns the number of recorded entries.
	Len(ctx context.Context) (int, error)
	// Recent returns up to n most recently inserted entries, oldest first.
	Recent(ctx context.Context, n int) ([]Status, error)
}
