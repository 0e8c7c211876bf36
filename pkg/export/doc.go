// Package export provides event backup and restore functionality.
//
// # Overview
//
// The export package enables users to back up their TinyPMF event log
// to JSON or CSV files and restore it later. This is useful for:
//   - Data backup and disaster recovery
//   - Migrating events between TinyPMF instances
//   - Exporting data for analysis in external tools
//   - Seeding a fresh instance with historical activity
//
// # Supported Formats
//
// JSON Format:
//   - Preserves all event fields (entity_id, timestamp, quantity)
//   - Includes export metadata (timestamp, time range, event count)
//   - Can be re-imported into TinyPMF
//   - Human-readable with pretty-printing
//
// CSV Format:
//   - One row per event: entity_id, timestamp, quantity
//   - Good for analysis in Excel, pandas, or other tools
//   - Can be re-imported; a missing quantity column imports as
//     unweighted activity
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - start: RFC3339 timestamp or date (default: 2 years ago)
//   - end: RFC3339 timestamp or date (default: now)
//   - entity: entity id filter (optional)
//
// Example:
//
//	curl "http://localhost:8080/v1/export?format=csv&start=2025-01-01" \
//	  -o backup.csv
//
// Import endpoint: POST /v1/import
// Content-Type: application/json or text/csv
//
// Example:
//
//	curl -X POST "http://localhost:8080/v1/import" \
//	  -H "Content-Type: application/json" \
//	  -d @backup.json
//
// # Usage Limits
//
//   - Import batch size: 5,000 events per write operation
//   - Validation: events older than 20 years or more than 1 day in
//     the future are rejected
//
// Note that importing old events can re-cohort entities: an entity's
// cohort is the period of its earliest event, so backfilling history
// moves entities into earlier cohorts on the next fit.
//
// # Programmatic Usage
//
// Exporting events:
//
//	exporter := export.NewExporter(store)
//	opts := export.ExportOptions{
//	    Start:  time.Now().AddDate(-1, 0, 0),
//	    End:    time.Now(),
//	    Format: "json",
//	}
//
//	file, _ := os.Create("backup.json")
//	defer file.Close()
//
//	result, err := exporter.ExportToJSON(ctx, file, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Exported %d events\n", result.EventsExported)
//
// Importing events:
//
//	importer := export.NewImporter(store)
//
//	file, _ := os.Open("backup.json")
//	defer file.Close()
//
//	result, err := importer.ImportFromJSON(ctx, file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Imported %d events\n", result.EventsImported)
package export
