package cohort

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tinypmf/tinypmf/pkg/period"
)

// Cell is one (cohort, period) position in the dense grid. PeriodNum
// is the cohort-relative age: 0 for the cohort's own period, 1 for the
// next observed period, and so on.
type Cell struct {
	Cohort    time.Time `json:"cohort"`
	Period    time.Time `json:"period"`
	PeriodNum int       `json:"period_num"`
}

// Axis selects how retention tables are pivoted: by calendar period or
// by cohort-relative age.
type Axis string

const (
	AxisPeriod    Axis = "period"
	AxisPeriodNum Axis = "period_num"
)

// ErrInvalidAxis is returned by ParseAxis for unknown axis tags.
var ErrInvalidAxis = fmt.Errorf("axis must be %q or %q", AxisPeriod, AxisPeriodNum)

// ParseAxis normalizes a user-supplied axis tag. Empty defaults to
// the calendar-period axis.
func ParseAxis(tag string) (Axis, error) {
	switch Axis(tag) {
	case "":
		return AxisPeriod, nil
	case AxisPeriod:
		return AxisPeriod, nil
	case AxisPeriodNum:
		return AxisPeriodNum, nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrInvalidAxis, tag)
	}
}

type cellKey struct {
	cohort, period int64
}

// Grid is the dense cohort x period lattice plus any metric columns
// computed over it. The base aggregates (per-cell quantity sums and
// distinct-entity counts) are immutable after BuildGrid; Compute and
// WithColumn return derived copies that share them.
type Grid struct {
	granularity period.Granularity

	cells   []Cell
	cohorts []time.Time
	periods []time.Time
	index   map[cellKey]int

	// Base aggregates, one value per cell.
	sums    []float64
	uniques []float64

	// Derived metric columns keyed by name, insertion-ordered.
	columns map[string][]float64
	order   []string
}

// BuildGrid aggregates normalized records into the dense grid. Every
// distinct cohort is crossed with every distinct observed period at or
// after it; cells with no activity hold zero sums and zero uniques.
func BuildGrid(records []Record, cfg Config) *Grid {
	cohortSet := make(map[int64]time.Time)
	periodSet := make(map[int64]time.Time)
	for _, r := range records {
		cohortSet[r.Cohort.Unix()] = r.Cohort
		periodSet[r.Period.Unix()] = r.Period
	}
	cohorts := sortedTimes(cohortSet)
	periods := sortedTimes(periodSet)

	g := &Grid{
		granularity: cfg.Granularity,
		cohorts:     cohorts,
		periods:     periods,
		index:       make(map[cellKey]int),
		columns:     make(map[string][]float64),
	}

	for _, c := range cohorts {
		num := 0
		for _, p := range periods {
			if p.Before(c) {
				continue
			}
			g.index[cellKey{c.Unix(), p.Unix()}] = len(g.cells)
			g.cells = append(g.cells, Cell{Cohort: c, Period: p, PeriodNum: num})
			num++
		}
	}

	g.sums = make([]float64, len(g.cells))
	g.uniques = make([]float64, len(g.cells))
	seen := make(map[int]map[string]struct{})
	for _, r := range records {
		i := g.index[cellKey{r.Cohort.Unix(), r.Period.Unix()}]
		g.sums[i] += r.Quantity
		set, ok := seen[i]
		if !ok {
			set = make(map[string]struct{})
			seen[i] = set
		}
		if _, dup := set[r.EntityID]; !dup {
			set[r.EntityID] = struct{}{}
			g.uniques[i]++
		}
	}
	return g
}

// Cells returns the grid cells in (cohort, period) order.
func (g *Grid) Cells() []Cell { return g.cells }

// Cohorts returns the distinct cohort dates, ascending.
func (g *Grid) Cohorts() []time.Time { return g.cohorts }

// Periods returns the distinct observed periods, ascending.
func (g *Grid) Periods() []time.Time { return g.periods }

// Granularity returns the bucket width the grid was built with.
func (g *Grid) Granularity() period.Granularity { return g.granularity }

// Columns returns a copy of all computed metric columns.
func (g *Grid) Columns() map[string][]float64 {
	out := make(map[string][]float64, len(g.columns))
	for name, col := range g.columns {
		out[name] = copyColumn(col)
	}
	return out
}

// Column returns one computed metric column by name.
func (g *Grid) Column(name string) ([]float64, error) {
	col, ok := g.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q not computed", ErrUnknownMetric, name)
	}
	return copyColumn(col), nil
}

// Matrix is a metric column pivoted into a cohort-by-column table.
// Cells outside the lattice (periods before the cohort, or ages the
// cohort has not reached) hold NaN.
type Matrix struct {
	Metric       string
	Axis         Axis
	Cohorts      []time.Time
	CohortLabels []string
	ColumnLabels []string
	Values       [][]float64
}

// Table pivots a computed column into a dense matrix along the given
// axis.
func (g *Grid) Table(name string, axis Axis) (*Matrix, error) {
	col, ok := g.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q not computed", ErrUnknownMetric, name)
	}

	m := &Matrix{
		Metric:  name,
		Axis:    axis,
		Cohorts: g.cohorts,
	}
	for _, c := range g.cohorts {
		m.CohortLabels = append(m.CohortLabels, g.granularity.Label(c))
	}

	var width int
	switch axis {
	case AxisPeriod:
		width = len(g.periods)
		for _, p := range g.periods {
			m.ColumnLabels = append(m.ColumnLabels, g.granularity.Label(p))
		}
	case AxisPeriodNum:
		for _, cell := range g.cells {
			if cell.PeriodNum+1 > width {
				width = cell.PeriodNum + 1
			}
		}
		for i := 0; i < width; i++ {
			m.ColumnLabels = append(m.ColumnLabels, fmt.Sprintf("+%d", i))
		}
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrInvalidAxis, string(axis))
	}

	m.Values = make([][]float64, len(g.cohorts))
	rowIdx := make(map[int64]int, len(g.cohorts))
	for i, c := range g.cohorts {
		row := make([]float64, width)
		for j := range row {
			row[j] = math.NaN()
		}
		m.Values[i] = row
		rowIdx[c.Unix()] = i
	}
	colIdx := make(map[int64]int, len(g.periods))
	for j, p := range g.periods {
		colIdx[p.Unix()] = j
	}

	for i, cell := range g.cells {
		row := rowIdx[cell.Cohort.Unix()]
		var j int
		if axis == AxisPeriod {
			j = colIdx[cell.Period.Unix()]
		} else {
			j = cell.PeriodNum
		}
		m.Values[row][j] = col[i]
	}
	return m, nil
}

// clone returns a grid sharing the immutable base with independent
// metric columns.
func (g *Grid) clone() *Grid {
	out := &Grid{
		granularity: g.granularity,
		cells:       g.cells,
		cohorts:     g.cohorts,
		periods:     g.periods,
		index:       g.index,
		sums:        g.sums,
		uniques:     g.uniques,
		columns:     make(map[string][]float64, len(g.columns)),
		order:       append([]string(nil), g.order...),
	}
	for name, col := range g.columns {
		out.columns[name] = copyColumn(col)
	}
	return out
}

func (g *Grid) setColumn(name string, col []float64) {
	if _, exists := g.columns[name]; !exists {
		g.order = append(g.order, name)
	}
	g.columns[name] = col
}

func sortedTimes(set map[int64]time.Time) []time.Time {
	out := make([]time.Time, 0, len(set))
	for _, t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
