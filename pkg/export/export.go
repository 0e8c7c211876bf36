package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// Exporter handles exporting events to various formats
type Exporter struct {
	storage storage.Store
}

// NewExporter creates a new exporter
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{storage: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Time range to export
	Start time.Time
	End   time.Time

	// Filter by entity ids (nil = all entities)
	EntityIDs []string

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	EventsExported int       `json:"events_exported"`
	TimeRange      string    `json:"time_range"`
	Format         string    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

// ExportToJSON exports events as JSON to the given writer
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	events, err := e.storage.Query(ctx, storage.QueryRequest{
		Start:     opts.Start,
		End:       opts.End,
		EntityIDs: opts.EntityIDs,
		Limit:     0, // No limit - export everything
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	// Export wrapper with metadata; the same envelope is accepted by
	// the importer.
	exportData := ExportData{Events: events}
	exportData.Metadata.ExportedAt = time.Now()
	exportData.Metadata.StartTime = opts.Start
	exportData.Metadata.EndTime = opts.End
	exportData.Metadata.EventCount = len(events)
	exportData.Metadata.Format = "json"
	exportData.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		EventsExported: len(events),
		TimeRange:      fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:         "json",
		ExportedAt:     exportData.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports events as CSV to the given writer.
// Columns: entity_id, timestamp, quantity.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	events, err := e.storage.Query(ctx, storage.QueryRequest{
		Start:     opts.Start,
		End:       opts.End,
		EntityIDs: opts.EntityIDs,
		Limit:     0, // No limit - export everything
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"entity_id", "timestamp", "quantity"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ev := range events {
		row := []string{
			ev.EntityID,
			ev.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(ev.Quantity, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return &ExportResult{
		EventsExported: len(events),
		TimeRange:      fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:         "csv",
		ExportedAt:     time.Now(),
	}, nil
}

// ExportData represents the JSON export envelope
type ExportData struct {
	Metadata struct {
		ExportedAt time.Time `json:"exported_at"`
		StartTime  time.Time `json:"start_time"`
		EndTime    time.Time `json:"end_time"`
		EventCount int       `json:"event_count"`
		Format     string    `json:"format"`
		Version    string    `json:"version"`
	} `json:"metadata"`
	Events []event.Event `json:"events"`
}
