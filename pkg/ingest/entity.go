package ingest

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/tinypmf/tinypmf/pkg/config"
)

// ErrEntityCardinality is returned when the distinct-entity limit is
// exceeded.
var ErrEntityCardinality = fmt.Errorf("entity cardinality limit exceeded (max %d distinct entities)", config.MaxEntityCardinality)

// EntityTracker tracks distinct entity ids to enforce cardinality
// limits. Ids are stored as 64-bit hashes so a million entities cost a
// few megabytes rather than holding every id string.
type EntityTracker struct {
	mu   sync.RWMutex
	seen map[uint64]struct{}
}

// NewEntityTracker creates a new entity cardinality tracker
func NewEntityTracker() *EntityTracker {
	return &EntityTracker{
		seen: make(map[uint64]struct{}),
	}
}

// Check validates that adding this entity won't exceed the cardinality
// limit. Returns error if the limit would be exceeded.
func (t *EntityTracker) Check(entityID string) error {
	h := xxhash.Sum64String(entityID)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, exists := t.seen[h]; exists {
		return nil
	}
	if len(t.seen) >= config.MaxEntityCardinality {
		return ErrEntityCardinality
	}
	return nil
}

// Record marks an entity as seen. Should be called after Check()
// passes and the event is successfully written.
func (t *EntityTracker) Record(entityID string) {
	h := xxhash.Sum64String(entityID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[h] = struct{}{}
}

// EntityStats provides cardinality usage information
type EntityStats struct {
	DistinctEntities int     `json:"distinct_entities"`
	EntityLimit      int     `json:"entity_limit"`
	UtilizationPct   float64 `json:"utilization_percent"`
	NearLimit        bool    `json:"near_limit"`
}

// Stats returns current cardinality statistics
func (t *EntityTracker) Stats() EntityStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	util := float64(len(t.seen)) / float64(config.MaxEntityCardinality)
	return EntityStats{
		DistinctEntities: len(t.seen),
		EntityLimit:      config.MaxEntityCardinality,
		UtilizationPct:   util * 100,
		NearLimit:        util >= config.EntityWarnThreshold,
	}
}
