package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

const (
	// MaxImportBatchSize is the maximum number of events to write at once
	MaxImportBatchSize = 5000
)

// Importer handles importing events from backup files
type Importer struct {
	storage storage.Store
}

// NewImporter creates a new importer
func NewImporter(store storage.Store) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	EventsImported int       `json:"events_imported"`
	BatchesWritten int       `json:"batches_written"`
	TimeRange      string    `json:"time_range"`
	ImportedAt     time.Time `json:"imported_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// ImportFromJSON imports events from a JSON backup file
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var importData ExportData
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&importData); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return im.importEvents(ctx, importData.Events)
}

// ImportFromCSV imports events from a CSV file with columns
// entity_id, timestamp[, quantity]. A missing quantity column yields
// quantity 0 for every event, matching an unweighted dataset.
func (im *Importer) ImportFromCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	entityCol, ok := cols["entity_id"]
	if !ok {
		return nil, fmt.Errorf("CSV is missing required column entity_id")
	}
	tsCol, ok := cols["timestamp"]
	if !ok {
		return nil, fmt.Errorf("CSV is missing required column timestamp")
	}
	qtyCol, hasQuantity := cols["quantity"]

	var events []event.Event
	var parseErrors []string
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line+1, err)
		}
		line++

		ts, err := parseEventTime(record[tsCol])
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		e := event.Event{EntityID: record[entityCol], Timestamp: ts}
		if hasQuantity {
			qty, err := strconv.ParseFloat(record[qtyCol], 64)
			if err != nil {
				parseErrors = append(parseErrors, fmt.Sprintf("line %d: invalid quantity %q", line, record[qtyCol]))
				continue
			}
			e.Quantity = qty
		}
		events = append(events, e)
	}

	result, err := im.importEvents(ctx, events)
	if err != nil {
		return nil, err
	}
	result.Errors = append(parseErrors, result.Errors...)
	return result, nil
}

// importEvents validates and batch-writes events
func (im *Importer) importEvents(ctx context.Context, events []event.Event) (*ImportResult, error) {
	if len(events) > config.MaxImportEvents {
		return nil, fmt.Errorf("import too large: %d events (max %d)", len(events), config.MaxImportEvents)
	}
	if len(events) == 0 {
		return &ImportResult{
			TimeRange:  "empty",
			ImportedAt: time.Now(),
		}, nil
	}

	var validationErrors []string
	valid := make([]event.Event, 0, len(events))
	for i, e := range events {
		if err := validateImportedEvent(e); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		valid = append(valid, e)
	}

	// Write events in batches to avoid overwhelming storage
	batchCount := 0
	for i := 0; i < len(valid); i += MaxImportBatchSize {
		end := i + MaxImportBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := im.storage.Write(ctx, valid[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	var minTime, maxTime time.Time
	if len(valid) > 0 {
		minTime, maxTime = valid[0].Timestamp, valid[0].Timestamp
		for _, e := range valid {
			if e.Timestamp.Before(minTime) {
				minTime = e.Timestamp
			}
			if e.Timestamp.After(maxTime) {
				maxTime = e.Timestamp
			}
		}
	}

	return &ImportResult{
		EventsImported: len(valid),
		BatchesWritten: batchCount,
		TimeRange:      fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339)),
		ImportedAt:     time.Now(),
		Errors:         validationErrors,
	}, nil
}

// validateImportedEvent validates an event before import
func validateImportedEvent(e event.Event) error {
	if err := event.Validate(e); err != nil {
		return err
	}

	// Check for reasonable timestamp (not too far in past/future)
	now := time.Now()
	if e.Timestamp.Before(now.Add(-20 * 365 * 24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in past: %s", e.Timestamp)
	}
	if e.Timestamp.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in future: %s", e.Timestamp)
	}
	return nil
}

// parseEventTime accepts RFC3339 timestamps and bare dates
func parseEventTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC3339 or YYYY-MM-DD)", s)
}
