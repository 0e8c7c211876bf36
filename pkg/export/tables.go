package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/tinypmf/tinypmf/pkg/cohort"
	"github.com/tinypmf/tinypmf/pkg/growth"
)

// WriteMatrixCSV renders a cohort matrix as CSV: one row per cohort,
// one column per period (or age). Undefined cells are left empty.
func WriteMatrixCSV(w io.Writer, m *cohort.Matrix) error {
	writer := csv.NewWriter(w)

	header := append([]string{"cohort"}, m.ColumnLabels...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(header))
	for i, values := range m.Values {
		row[0] = m.CohortLabels[i]
		for j, v := range values {
			row[j+1] = formatCell(v)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// growthColumns is the CSV column order for growth tables.
var growthColumns = []string{
	"period", "total", "new", "resurrected", "expansion", "contraction",
	"retained", "churned", "new_entities", "active_entities", "event_count",
	"new_rate", "resurrected_rate", "expansion_rate", "contraction_rate",
	"retained_rate", "churned_rate", "growth_rate", "gross_retention",
	"quick_ratio", "net_churn",
}

// WriteGrowthCSV renders a growth accounting table as CSV, one row per
// period. Undefined values are left empty.
func WriteGrowthCSV(w io.Writer, t *growth.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(growthColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	labels := t.PeriodLabels()
	for i, row := range t.Rows() {
		record := []string{
			labels[i],
			formatCell(row.Total),
			formatCell(row.New),
			formatCell(row.Resurrected),
			formatCell(row.Expansion),
			formatCell(row.Contraction),
			formatCell(row.Retained),
			formatCell(row.Churned),
			strconv.Itoa(row.NewEntities),
			strconv.Itoa(row.ActiveEntities),
			strconv.Itoa(row.EventCount),
			formatCell(row.NewRate),
			formatCell(row.ResurrectedRate),
			formatCell(row.ExpansionRate),
			formatCell(row.ContractionRate),
			formatCell(row.RetainedRate),
			formatCell(row.ChurnedRate),
			formatCell(row.GrowthRate),
			formatCell(row.GrossRetention),
			formatCell(row.QuickRatio),
			formatCell(row.NetChurn),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatCell formats a table value for CSV; NaN and infinities render
// as empty cells.
func formatCell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
