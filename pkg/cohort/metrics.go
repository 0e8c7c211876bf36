package cohort

import (
	"fmt"
	"math"
	"time"
)

// Standard metric names. Each computed metric also gets a "perc_"
// sibling normalized against the cohort's period-0 value.
const (
	MetricTotal            = "total"
	MetricUniqueUsers      = "unique_users"
	MetricChurnTotal       = "churn_total"
	MetricChurnUniqueUsers = "churn_unique_users"
	MetricAccum            = "accum"
	MetricPerUser          = "per_user"

	PercPrefix = "perc_"
)

// ErrUnknownMetric is returned when a requested metric name is not in
// the registry and not a computed column.
var ErrUnknownMetric = fmt.Errorf("unknown metric")

// metricSpec describes a registered metric: the metrics it reads,
// which column its perc_ sibling normalizes against, and how to
// compute it from the grid.
type metricSpec struct {
	deps     []string
	percBase string
	compute  func(*Grid) []float64
}

var metricSpecs = map[string]metricSpec{
	MetricTotal: {
		compute: func(g *Grid) []float64 { return copyColumn(g.sums) },
	},
	MetricUniqueUsers: {
		compute: func(g *Grid) []float64 { return copyColumn(g.uniques) },
	},
	MetricChurnTotal: {
		deps:     []string{MetricTotal},
		percBase: MetricTotal,
		compute:  func(g *Grid) []float64 { return churnColumn(g, g.columns[MetricTotal]) },
	},
	MetricChurnUniqueUsers: {
		deps:     []string{MetricUniqueUsers},
		percBase: MetricUniqueUsers,
		compute:  func(g *Grid) []float64 { return churnColumn(g, g.columns[MetricUniqueUsers]) },
	},
	MetricAccum: {
		deps:     []string{MetricTotal},
		percBase: MetricTotal,
		compute:  func(g *Grid) []float64 { return accumColumn(g, g.columns[MetricTotal]) },
	},
	MetricPerUser: {
		deps: []string{MetricTotal, MetricUniqueUsers},
		compute: func(g *Grid) []float64 {
			total := g.columns[MetricTotal]
			uniq := g.columns[MetricUniqueUsers]
			out := make([]float64, len(total))
			for i := range out {
				out[i] = safeDiv(total[i], uniq[i])
			}
			return out
		},
	},
}

// StandardMetrics lists every registered metric name in a stable order.
func StandardMetrics() []string {
	return []string{
		MetricTotal, MetricUniqueUsers,
		MetricChurnTotal, MetricChurnUniqueUsers,
		MetricAccum, MetricPerUser,
	}
}

// Compute returns a derived grid with the named metrics (and their
// perc_ siblings) attached. The receiver is never mutated; metric
// dependencies are computed as needed.
func Compute(g *Grid, names ...string) (*Grid, error) {
	return g.Compute(names...)
}

// Compute is the method form of the package-level Compute.
func (g *Grid) Compute(names ...string) (*Grid, error) {
	out := g.clone()
	for _, name := range names {
		if err := out.computeMetric(name, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// computeMetric attaches one metric column plus its perc_ sibling.
// Dependencies are only computed when absent; the metrics the caller
// actually asked for overwrite any stale column of the same name.
func (g *Grid) computeMetric(name string, force bool) error {
	spec, ok := metricSpecs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	if _, exists := g.columns[name]; exists && !force {
		return nil
	}
	for _, dep := range spec.deps {
		if err := g.computeMetric(dep, false); err != nil {
			return err
		}
	}

	col := spec.compute(g)
	g.setColumn(name, col)

	base := col
	if spec.percBase != "" {
		base = g.columns[spec.percBase]
	}
	g.setColumn(PercPrefix+name, percColumn(g, col, base))
	return nil
}

// CellValue addresses one grid cell by cohort and period, used to
// inject externally computed (personalized) columns.
type CellValue struct {
	Cohort time.Time `json:"cohort"`
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// WithColumn returns a derived grid carrying a caller-supplied column
// under the given label, plus its perc_ sibling normalized against the
// column's own period-0 values. Cells the caller does not supply hold
// NaN; values outside the lattice are dropped.
func (g *Grid) WithColumn(label string, values []CellValue) (*Grid, error) {
	if label == "" {
		return nil, fmt.Errorf("column label must not be empty")
	}
	out := g.clone()

	col := make([]float64, len(out.cells))
	for i := range col {
		col[i] = math.NaN()
	}
	for _, v := range values {
		i, ok := out.index[cellKey{v.Cohort.Unix(), v.Period.Unix()}]
		if !ok {
			continue
		}
		col[i] = v.Value
	}
	out.setColumn(label, col)
	out.setColumn(PercPrefix+label, percColumn(out, col, col))
	return out, nil
}

// percColumn normalizes col against the base column's value at each
// cohort's period 0. A zero baseline yields NaN: 0 would misread as
// fully churned.
func percColumn(g *Grid, col, base []float64) []float64 {
	out := make([]float64, len(col))
	start := 0
	for i, cell := range g.cells {
		if cell.PeriodNum == 0 {
			start = i
		}
		out[i] = safeDiv(col[i], base[start])
	}
	return out
}

// churnColumn is the drop from the cohort's period-0 value:
// base[start] - base[i].
func churnColumn(g *Grid, base []float64) []float64 {
	out := make([]float64, len(base))
	start := 0
	for i, cell := range g.cells {
		if cell.PeriodNum == 0 {
			start = i
		}
		out[i] = base[start] - base[i]
	}
	return out
}

// accumColumn is the running sum of base within each cohort.
func accumColumn(g *Grid, base []float64) []float64 {
	out := make([]float64, len(base))
	sum := 0.0
	for i, cell := range g.cells {
		if cell.PeriodNum == 0 {
			sum = 0
		}
		sum += base[i]
		out[i] = sum
	}
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

func copyColumn(col []float64) []float64 {
	return append([]float64(nil), col...)
}
