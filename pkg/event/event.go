// Package event defines the raw activity record shared by the ingest
// pipeline, the storage backends, and the analytics engines.
package event

import (
	"errors"
	"fmt"
	"time"
)

// Event is a single observed activity: an entity did something on a
// date, optionally with a quantity attached (revenue, units, seats).
// Events are immutable once ingested.
type Event struct {
	// EntityID identifies the user/account/customer. Opaque to the
	// engines; only equality matters.
	EntityID string `json:"entity_id"`

	// Timestamp is treated as a naive calendar date. Any
	// time-of-day component is ignored by period bucketing.
	Timestamp time.Time `json:"timestamp"`

	// Quantity is the size of the activity. Zero is a valid quantity
	// for weighted datasets; unweighted ("simple") fits ignore it and
	// count each event as 1.
	Quantity float64 `json:"quantity,omitempty"`
}

// MaxEntityIDLength bounds entity ids to keep storage keys and
// cardinality tracking cheap.
const MaxEntityIDLength = 256

var (
	ErrMissingEntityID  = errors.New("event has no entity id")
	ErrMissingTimestamp = errors.New("event has no timestamp")
)

// Validate checks an event for ingestion.
func Validate(e Event) error {
	if e.EntityID == "" {
		return ErrMissingEntityID
	}
	if len(e.EntityID) > MaxEntityIDLength {
		return fmt.Errorf("entity id too long: %d bytes (max %d)", len(e.EntityID), MaxEntityIDLength)
	}
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}
