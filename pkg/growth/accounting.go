// Package growth implements growth accounting: per-period
// decomposition of activity (or revenue) into new, resurrected,
// retained, expansion, contraction, and churned components, plus the
// derived rate and ratio series built on them.
//
// The decomposition works entity by entity over a dense period axis.
// Each entity contributes a presence series starting at its first
// observed period; transitions between consecutive periods classify
// the entity's contribution. Undefined values (first period rates,
// zero denominators) are NaN, never zero.
package growth

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tinypmf/tinypmf/pkg/cohort"
	"github.com/tinypmf/tinypmf/pkg/period"
)

// Entity states per period, defined as change + active where change is
// the presence delta from the previous period (first period uses 2 so
// the sum lands on StateNew).
const (
	StateNew         = 3
	StateResurrected = 2
	StateRetained    = 1
	StateDormant     = 0
	StateChurned     = -1
)

// Row is the growth accounting decomposition of one period.
// Contraction and Churned are negative quantities.
type Row struct {
	Period time.Time `json:"period"`

	Total       float64 `json:"total"`
	New         float64 `json:"new"`
	Resurrected float64 `json:"resurrected"`
	Expansion   float64 `json:"expansion"`
	Contraction float64 `json:"contraction"`
	Retained    float64 `json:"retained"`
	Churned     float64 `json:"churned"`

	NewEntities    int `json:"new_entities"`
	ActiveEntities int `json:"active_entities"`
	EventCount     int `json:"event_count"`

	NewRate         float64 `json:"new_rate"`
	ResurrectedRate float64 `json:"resurrected_rate"`
	ExpansionRate   float64 `json:"expansion_rate"`
	ContractionRate float64 `json:"contraction_rate"`
	RetainedRate    float64 `json:"retained_rate"`
	ChurnedRate     float64 `json:"churned_rate"`

	GrowthRate     float64 `json:"growth_rate"`
	GrossRetention float64 `json:"gross_retention"`
	QuickRatio     float64 `json:"quick_ratio"`
	NetChurn       float64 `json:"net_churn"`
}

// Table is the full growth accounting result: one Row per observed
// period, ascending.
type Table struct {
	granularity period.Granularity
	rows        []Row
}

// Rows returns the per-period rows, ascending by period.
func (t *Table) Rows() []Row { return t.rows }

// Granularity returns the bucket width the table was computed at.
func (t *Table) Granularity() period.Granularity { return t.granularity }

// PeriodLabels returns the label of each row's period.
func (t *Table) PeriodLabels() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = t.granularity.Label(r.Period)
	}
	return out
}

// Series extracts one named column as a float slice, in row order.
func (t *Table) Series(name string) ([]float64, error) {
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		switch name {
		case "total":
			out[i] = r.Total
		case "new":
			out[i] = r.New
		case "resurrected":
			out[i] = r.Resurrected
		case "expansion":
			out[i] = r.Expansion
		case "contraction":
			out[i] = r.Contraction
		case "retained":
			out[i] = r.Retained
		case "churned":
			out[i] = r.Churned
		case "new_rate":
			out[i] = r.NewRate
		case "resurrected_rate":
			out[i] = r.ResurrectedRate
		case "expansion_rate":
			out[i] = r.ExpansionRate
		case "contraction_rate":
			out[i] = r.ContractionRate
		case "retained_rate":
			out[i] = r.RetainedRate
		case "churned_rate":
			out[i] = r.ChurnedRate
		case "growth_rate":
			out[i] = r.GrowthRate
		case "gross_retention":
			out[i] = r.GrossRetention
		case "quick_ratio":
			out[i] = r.QuickRatio
		case "net_churn":
			out[i] = r.NetChurn
		default:
			return nil, fmt.Errorf("unknown growth series %q", name)
		}
	}
	return out, nil
}

// ErrInvalidLookback is returned by CompoundGrowth for a lookback
// below 1.
var ErrInvalidLookback = errors.New("compound growth lookback must be >= 1")

// CompoundGrowth returns the compounded per-period growth rate of the
// total over an n-period lookback: (total/total[-n])^(1/n) - 1. The
// first n values are NaN.
func (t *Table) CompoundGrowth(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidLookback, n)
	}
	out := make([]float64, len(t.rows))
	for i := range t.rows {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		ratio := safeDiv(t.rows[i].Total, t.rows[i-n].Total)
		out[i] = math.Pow(ratio, 1/float64(n)) - 1
	}
	return out, nil
}

// CompoundLabel names a compound growth column, e.g. "CMGR2" for a
// 2-month lookback on a monthly table.
func (t *Table) CompoundLabel(n int) string {
	return fmt.Sprintf("C%sGR%d", strings.ToUpper(string(t.granularity)), n)
}

type entitySeries struct {
	cohortIdx int
	freq      []int
	revenue   []float64
}

// Compute runs growth accounting over normalized records at the given
// granularity. Records carry quantity 1 for unweighted fits, so the
// same decomposition covers both activity and revenue accounting.
func Compute(records []cohort.Record, g period.Granularity) *Table {
	periods := distinctPeriods(records)
	periodIdx := make(map[int64]int, len(periods))
	for i, p := range periods {
		periodIdx[p.Unix()] = i
	}

	entities := make(map[string]*entitySeries)
	for _, r := range records {
		es, ok := entities[r.EntityID]
		if !ok {
			es = &entitySeries{
				cohortIdx: periodIdx[r.Cohort.Unix()],
				freq:      make([]int, len(periods)),
				revenue:   make([]float64, len(periods)),
			}
			entities[r.EntityID] = es
		}
		i := periodIdx[r.Period.Unix()]
		es.freq[i]++
		es.revenue[i] += r.Quantity
	}

	rows := make([]Row, len(periods))
	for i, p := range periods {
		rows[i].Period = p
	}

	// Iterate entities in sorted order so float accumulation is
	// reproducible run to run.
	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		es := entities[id]
		prevActive := 0
		prevRevenue := 0.0
		for i := es.cohortIdx; i < len(periods); i++ {
			active := 0
			if es.freq[i] > 0 {
				active = 1
			}
			change := active - prevActive
			if i == es.cohortIdx {
				change = 2
			}
			state := change + active

			rev := es.revenue[i]
			revChange := rev - prevRevenue
			if i == es.cohortIdx {
				revChange = math.NaN()
			}

			row := &rows[i]
			row.Total += rev
			row.EventCount += es.freq[i]
			row.ActiveEntities += active
			if i == es.cohortIdx {
				row.NewEntities++
			}

			switch state {
			case StateNew:
				row.New += rev
			case StateResurrected:
				row.Resurrected += rev
			case StateRetained:
				if revChange > 0 {
					row.Expansion += revChange
				} else if revChange < 0 {
					row.Contraction += revChange
				}
				row.Retained += rev - math.Max(revChange, 0)
			case StateChurned:
				row.Churned += revChange
			}

			prevActive = active
			prevRevenue = rev
		}
	}

	deriveRates(rows)
	return &Table{granularity: g, rows: rows}
}

// deriveRates fills the rate and ratio columns. Rates divide each
// category by the previous period's value of the same category; the
// first row has no previous period, so its rates are NaN.
func deriveRates(rows []Row) {
	for i := range rows {
		row := &rows[i]

		if i == 0 {
			nan := math.NaN()
			row.NewRate, row.ResurrectedRate, row.ExpansionRate = nan, nan, nan
			row.ContractionRate, row.RetainedRate, row.ChurnedRate = nan, nan, nan
			row.GrowthRate, row.GrossRetention, row.NetChurn = nan, nan, nan
			row.QuickRatio = safeDiv(row.New+row.Resurrected+row.Expansion,
				-row.Churned-row.Contraction)
			continue
		}

		prev := rows[i-1]
		row.NewRate = safeDiv(row.New, prev.New)
		row.ResurrectedRate = safeDiv(row.Resurrected, prev.Resurrected)
		row.ExpansionRate = safeDiv(row.Expansion, prev.Expansion)
		row.ContractionRate = safeDiv(row.Contraction, prev.Contraction)
		row.RetainedRate = safeDiv(row.Retained, prev.Retained)
		row.ChurnedRate = safeDiv(row.Churned, prev.Churned)

		row.GrowthRate = row.NewRate + row.ResurrectedRate + row.ExpansionRate -
			row.ContractionRate - row.ChurnedRate
		row.GrossRetention = safeDiv(row.Retained, prev.Total)
		row.QuickRatio = safeDiv(row.New+row.Resurrected+row.Expansion,
			-row.Churned-row.Contraction)
		row.NetChurn = safeDiv(-row.Churned-row.Contraction-row.Resurrected-row.Expansion,
			prev.Total)
	}
}

func distinctPeriods(records []cohort.Record) []time.Time {
	set := make(map[int64]time.Time)
	for _, r := range records {
		set[r.Period.Unix()] = r.Period
	}
	out := make([]time.Time, 0, len(set))
	for _, t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// safeDiv divides, surfacing undefined results as NaN instead of Inf
// or zero.
func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}
