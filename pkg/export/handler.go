package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler
func NewHandler(store storage.Store) *Handler {
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
	}
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - start: RFC3339 timestamp (default: full analytics window)
//   - end: RFC3339 timestamp (default: now)
//   - entity: entity id filter (optional)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		http.Error(w, "Invalid format. Must be 'json' or 'csv'", http.StatusBadRequest)
		return
	}

	end := parseTimeParam(query.Get("end"), time.Now())
	start := parseTimeParam(query.Get("start"), end.Add(-config.AnalyticsDefaultWindow))

	if !start.Before(end) {
		http.Error(w, "start must be before end", http.StatusBadRequest)
		return
	}

	opts := ExportOptions{
		Start:  start,
		End:    end,
		Format: format,
	}
	if entity := query.Get("entity"); entity != "" {
		opts.EntityIDs = []string{entity}
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=tinypmf-export-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=tinypmf-export-%s.csv", timestamp))
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	var result *ExportResult
	var err error
	if format == "json" {
		result, err = h.exporter.ExportToJSON(ctx, w, opts)
	} else {
		result, err = h.exporter.ExportToCSV(ctx, w, opts)
	}
	if err != nil {
		log.Printf("❌ Export failed: %v", err)
		http.Error(w, fmt.Sprintf("Export failed: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("✅ Exported %d events (%s) from %s", result.EventsExported, format, result.TimeRange)
}

// HandleImport handles POST /v1/import
// Accepts JSON backup files (application/json) or CSV uploads
// (text/csv) and imports events into storage
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	contentType := r.Header.Get("Content-Type")

	var result *ImportResult
	var err error
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		result, err = h.importer.ImportFromJSON(ctx, r.Body)
	case strings.HasPrefix(contentType, "text/csv"):
		result, err = h.importer.ImportFromCSV(ctx, r.Body)
	default:
		http.Error(w, "Content-Type must be application/json or text/csv", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("❌ Import failed: %v", err)
		http.Error(w, fmt.Sprintf("Import failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Log warnings if there were validation errors
	if len(result.Errors) > 0 {
		log.Printf("⚠️  Import completed with %d validation errors", len(result.Errors))
		for i, e := range result.Errors {
			if i < 10 { // Log first 10 errors
				log.Printf("   - %s", e)
			}
		}
		if len(result.Errors) > 10 {
			log.Printf("   ... and %d more errors", len(result.Errors)-10)
		}
	}

	log.Printf("✅ Imported %d events in %d batches from %s", result.EventsImported, result.BatchesWritten, result.TimeRange)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("❌ Failed to encode import response: %v", err)
	}
}

// parseTimeParam parses a time parameter or returns default
func parseTimeParam(param string, defaultTime time.Time) time.Time {
	if param == "" {
		return defaultTime
	}
	if t, err := time.Parse(time.RFC3339, param); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", param); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", param); err == nil {
		return t
	}
	return defaultTime
}
