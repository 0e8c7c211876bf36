package cohort

import (
	"errors"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/period"
)

// Config controls how raw events are interpreted by the cohort and
// growth engines.
type Config struct {
	// Granularity is the bucket width for periods and cohorts.
	Granularity period.Granularity

	// Simple counts every event as quantity 1, ignoring Event.Quantity.
	// When false the dataset is weighted and events must carry
	// quantities (HasQuantity must be set by the caller).
	Simple bool

	// HasQuantity records whether the source data actually carried a
	// quantity column. A weighted fit over quantity-less data is a
	// caller error, not a dataset that happens to be all zeros.
	HasQuantity bool
}

// ErrQuantityRequired is returned by Normalize for weighted configs
// over data with no quantity column.
var ErrQuantityRequired = errors.New("simple=false requires a quantity column")

// Record is one event after period assignment: the raw date, its
// containing period, and the cohort of its entity. Records preserve
// input order via RowID.
type Record struct {
	RowID    int
	EntityID string
	Date     time.Time
	Period   time.Time
	Cohort   time.Time
	Quantity float64
}

// Normalize buckets events into periods and assigns every entity to
// the cohort of its earliest observed period. The input is not
// assumed sorted; output order matches input order.
func Normalize(events []event.Event, cfg Config) ([]Record, error) {
	if !cfg.Simple && !cfg.HasQuantity {
		return nil, ErrQuantityRequired
	}

	// First pass: period per event, earliest period per entity.
	periods := make([]time.Time, len(events))
	firstSeen := make(map[string]time.Time, len(events))
	for i, e := range events {
		p := cfg.Granularity.Representative(e.Timestamp)
		periods[i] = p
		if first, ok := firstSeen[e.EntityID]; !ok || p.Before(first) {
			firstSeen[e.EntityID] = p
		}
	}

	records := make([]Record, len(events))
	for i, e := range events {
		qty := e.Quantity
		if cfg.Simple {
			qty = 1
		}
		records[i] = Record{
			RowID:    i,
			EntityID: e.EntityID,
			Date:     e.Timestamp,
			Period:   periods[i],
			Cohort:   firstSeen[e.EntityID],
			Quantity: qty,
		}
	}
	return records, nil
}
