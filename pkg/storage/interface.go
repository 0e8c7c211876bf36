package storage

import (
	"context"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
)

// Store defines the interface for event storage backends.
// Implementations: memory (testing), badger (production)
type Store interface {
	// Write stores events
	Write(ctx context.Context, events []event.Event) error

	// Query retrieves events within a time range
	Query(ctx context.Context, req QueryRequest) ([]event.Event, error)

	// Delete removes events older than the given time
	Delete(ctx context.Context, before time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// QueryRequest specifies what events to retrieve
type QueryRequest struct {
	// Time range (inclusive start, inclusive end)
	Start time.Time
	End   time.Time

	// Filter by entity id (optional)
	EntityIDs []string

	// Limit number of results (0 = no limit)
	Limit int
}

// Matches reports whether an event passes the request's time and
// entity filters. Shared by backends so filter semantics stay
// identical across them.
func (r QueryRequest) Matches(e event.Event) bool {
	if e.Timestamp.Before(r.Start) || e.Timestamp.After(r.End) {
		return false
	}
	if len(r.EntityIDs) > 0 {
		found := false
		for _, id := range r.EntityIDs {
			if e.EntityID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Stats provides storage health and usage info
type Stats struct {
	// Total events stored
	TotalEvents uint64

	// Distinct entity ids
	TotalEntities uint64

	// Storage size in bytes
	SizeBytes uint64

	// Oldest event timestamp
	OldestEvent time.Time

	// Newest event timestamp
	NewestEvent time.Time
}
