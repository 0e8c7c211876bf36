package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// Storage stores events in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	events []event.Event
	mu     sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		events: make([]event.Event, 0, 10000),
	}
}

// Write stores events in memory
func (s *Storage) Write(ctx context.Context, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	return nil
}

// Query retrieves events matching the request
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []event.Event
	for _, e := range s.events {
		if !req.Matches(e) {
			continue
		}
		results = append(results, e)

		if req.Limit > 0 && len(results) >= req.Limit {
			break
		}
	}
	return results, nil
}

// Delete removes events older than the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]event.Event, 0, len(s.events))
	for _, e := range s.events {
		if e.Timestamp.After(before) {
			filtered = append(filtered, e)
		}
	}
	s.events = filtered
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalEvents: uint64(len(s.events)),
	}
	if len(s.events) == 0 {
		return stats, nil
	}

	// Count distinct entities and find min/max timestamps in one pass
	entities := make(map[string]bool)
	oldest := s.events[0].Timestamp
	newest := s.events[0].Timestamp

	for _, e := range s.events {
		entities[e.EntityID] = true
		if e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}

	stats.TotalEntities = uint64(len(entities))
	stats.OldestEvent = oldest
	stats.NewestEvent = newest

	// Rough size estimate (each event ~80 bytes)
	stats.SizeBytes = uint64(len(s.events)) * 80

	return stats, nil
}
