package cohort

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/period"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ev(id string, ts time.Time, qty float64) event.Event {
	return event.Event{EntityID: id, Timestamp: ts, Quantity: qty}
}

func simpleMonthly() Config {
	return Config{Granularity: period.Monthly, Simple: true}
}

func weightedMonthly() Config {
	return Config{Granularity: period.Monthly, HasQuantity: true}
}

// scenarioEvents: A active Jan/Feb/Mar, B active Feb/Mar, C active Jan
// only.
func scenarioEvents() []event.Event {
	return []event.Event{
		ev("A", day(2024, time.January, 5), 1),
		ev("A", day(2024, time.February, 10), 1),
		ev("A", day(2024, time.March, 15), 1),
		ev("B", day(2024, time.February, 3), 1),
		ev("B", day(2024, time.March, 20), 1),
		ev("C", day(2024, time.January, 25), 1),
	}
}

func TestNormalizeQuantityRequired(t *testing.T) {
	_, err := Normalize(scenarioEvents(), Config{Granularity: period.Monthly})
	if !errors.Is(err, ErrQuantityRequired) {
		t.Fatalf("expected ErrQuantityRequired, got %v", err)
	}
}

func TestNormalizeAssignsCohorts(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}

	wantCohort := map[string]time.Time{
		"A": day(2024, time.January, 1),
		"B": day(2024, time.February, 1),
		"C": day(2024, time.January, 1),
	}
	for _, r := range records {
		if !r.Cohort.Equal(wantCohort[r.EntityID]) {
			t.Errorf("entity %s: cohort = %v, want %v", r.EntityID, r.Cohort, wantCohort[r.EntityID])
		}
		if r.Period.Before(r.Cohort) {
			t.Errorf("entity %s: period %v before cohort %v", r.EntityID, r.Period, r.Cohort)
		}
		if r.Quantity != 1 {
			t.Errorf("simple fit: quantity = %v, want 1", r.Quantity)
		}
	}

	// Shuffled input order must not change cohort assignment.
	again, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	for i := range records {
		if !again[i].Cohort.Equal(records[i].Cohort) {
			t.Fatal("cohort assignment is not deterministic")
		}
	}
}

func TestGridDenseAndContiguous(t *testing.T) {
	// A active Jan and Mar (gap in Feb), B starts in Feb.
	events := []event.Event{
		ev("A", day(2024, time.January, 5), 1),
		ev("A", day(2024, time.March, 15), 1),
		ev("B", day(2024, time.February, 3), 1),
	}
	records, err := Normalize(events, simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g := BuildGrid(records, simpleMonthly())

	if len(g.Cohorts()) != 2 || len(g.Periods()) != 3 {
		t.Fatalf("cohorts=%d periods=%d, want 2 and 3", len(g.Cohorts()), len(g.Periods()))
	}
	// Jan cohort spans 3 periods, Feb cohort spans 2.
	if len(g.Cells()) != 5 {
		t.Fatalf("cells = %d, want 5", len(g.Cells()))
	}

	// The silent February cell of the January cohort exists with zero
	// activity and age 1.
	computed, err := g.Compute(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}
	total, err := computed.Column(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for i, cell := range computed.Cells() {
		if cell.Cohort.Equal(day(2024, time.January, 1)) && cell.Period.Equal(day(2024, time.February, 1)) {
			found = true
			if total[i] != 0 {
				t.Errorf("gap cell total = %v, want 0", total[i])
			}
			if cell.PeriodNum != 1 {
				t.Errorf("gap cell period_num = %d, want 1", cell.PeriodNum)
			}
		}
	}
	if !found {
		t.Fatal("dense grid is missing the zero-activity gap cell")
	}
}

func TestGridSinglePeriodCohort(t *testing.T) {
	records, err := Normalize([]event.Event{ev("A", day(2024, time.May, 2), 1)}, simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g := BuildGrid(records, simpleMonthly())
	if len(g.Cells()) != 1 {
		t.Fatalf("cells = %d, want 1", len(g.Cells()))
	}
	if g.Cells()[0].PeriodNum != 0 {
		t.Errorf("period_num = %d, want 0", g.Cells()[0].PeriodNum)
	}
}

func TestMetricsTotalsAndPercentages(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildGrid(records, simpleMonthly()).Compute(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}

	total, err := g.Column(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}
	perc, err := g.Column(PercPrefix + MetricTotal)
	if err != nil {
		t.Fatal(err)
	}

	// January cohort (A+C) across Jan, Feb, Mar.
	wantTotal := map[string]float64{"0": 2, "1": 1, "2": 1}
	wantPerc := map[string]float64{"0": 1, "1": 0.5, "2": 0.5}
	for i, cell := range g.Cells() {
		if !cell.Cohort.Equal(day(2024, time.January, 1)) {
			continue
		}
		key := string(rune('0' + cell.PeriodNum))
		if total[i] != wantTotal[key] {
			t.Errorf("jan cohort +%d: total = %v, want %v", cell.PeriodNum, total[i], wantTotal[key])
		}
		if perc[i] != wantPerc[key] {
			t.Errorf("jan cohort +%d: perc_total = %v, want %v", cell.PeriodNum, perc[i], wantPerc[key])
		}
	}

	// Period 0 is always exactly 1 when the baseline is nonzero.
	for i, cell := range g.Cells() {
		if cell.PeriodNum == 0 && total[i] != 0 && perc[i] != 1 {
			t.Errorf("period 0 perc_total = %v, want 1", perc[i])
		}
	}
}

func TestMetricDependencyResolution(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	base := BuildGrid(records, simpleMonthly())

	// Asking for churn_total alone must compute total as a dependency.
	g, err := base.Compute(MetricChurnTotal)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Column(MetricTotal); err != nil {
		t.Fatalf("dependency total was not computed: %v", err)
	}
	churn, err := g.Column(MetricChurnTotal)
	if err != nil {
		t.Fatal(err)
	}
	for i, cell := range g.Cells() {
		if cell.PeriodNum == 0 && churn[i] != 0 {
			t.Errorf("churn at period 0 = %v, want 0", churn[i])
		}
	}

	// perc_total is identical whether total was requested directly or
	// pulled in as a dependency.
	direct, err := base.Compute(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := direct.Column(PercPrefix + MetricTotal)
	b, _ := g.Column(PercPrefix + MetricTotal)
	if len(a) != len(b) {
		t.Fatalf("perc_total length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			t.Errorf("perc_total[%d]: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestAccumAndPerUser(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildGrid(records, simpleMonthly()).Compute(MetricAccum, MetricPerUser)
	if err != nil {
		t.Fatal(err)
	}

	accum, _ := g.Column(MetricAccum)
	perUser, _ := g.Column(MetricPerUser)

	wantAccum := []float64{2, 3, 4} // jan cohort running total
	for i, cell := range g.Cells() {
		if !cell.Cohort.Equal(day(2024, time.January, 1)) {
			continue
		}
		if accum[i] != wantAccum[cell.PeriodNum] {
			t.Errorf("accum +%d = %v, want %v", cell.PeriodNum, accum[i], wantAccum[cell.PeriodNum])
		}
		if perUser[i] != 1 {
			t.Errorf("per_user +%d = %v, want 1 (simple fit)", cell.PeriodNum, perUser[i])
		}
	}
}

func TestPerUserUndefinedForEmptyCell(t *testing.T) {
	events := []event.Event{
		ev("A", day(2024, time.January, 5), 1),
		ev("A", day(2024, time.March, 15), 1),
	}
	records, err := Normalize(events, simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildGrid(records, simpleMonthly()).Compute(MetricPerUser)
	if err != nil {
		t.Fatal(err)
	}
	perUser, _ := g.Column(MetricPerUser)
	for i, cell := range g.Cells() {
		if cell.Period.Equal(day(2024, time.February, 1)) {
			if !math.IsNaN(perUser[i]) {
				t.Errorf("per_user over empty cell = %v, want NaN", perUser[i])
			}
		}
	}
}

func TestPercZeroBaselineIsNaN(t *testing.T) {
	// Weighted fit where the cohort's first period has quantity 0.
	events := []event.Event{
		ev("A", day(2024, time.January, 5), 0),
		ev("A", day(2024, time.February, 10), 10),
	}
	records, err := Normalize(events, weightedMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildGrid(records, weightedMonthly()).Compute(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}
	perc, _ := g.Column(PercPrefix + MetricTotal)
	for i := range perc {
		if !math.IsNaN(perc[i]) {
			t.Errorf("perc_total[%d] = %v, want NaN for zero baseline", i, perc[i])
		}
	}
}

func TestUnknownMetric(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	_, err = BuildGrid(records, simpleMonthly()).Compute("bogus")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestComputeDoesNotMutateBase(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	base := BuildGrid(records, simpleMonthly())
	if _, err := base.Compute(MetricTotal, MetricAccum); err != nil {
		t.Fatal(err)
	}
	if cols := base.Columns(); len(cols) != 0 {
		t.Fatalf("base grid mutated: %d columns after Compute", len(cols))
	}
}

func TestTableMatrixAxes(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g, err := BuildGrid(records, simpleMonthly()).Compute(MetricTotal)
	if err != nil {
		t.Fatal(err)
	}

	byPeriod, err := g.Table(MetricTotal, AxisPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if byPeriod.CohortLabels[0] != "2024-01" || byPeriod.ColumnLabels[2] != "2024-03" {
		t.Errorf("labels = %v / %v", byPeriod.CohortLabels, byPeriod.ColumnLabels)
	}
	if byPeriod.Values[0][0] != 2 {
		t.Errorf("jan cohort @ jan = %v, want 2", byPeriod.Values[0][0])
	}
	// Feb cohort has no January cell.
	if !math.IsNaN(byPeriod.Values[1][0]) {
		t.Errorf("feb cohort @ jan = %v, want NaN", byPeriod.Values[1][0])
	}

	byAge, err := g.Table(MetricTotal, AxisPeriodNum)
	if err != nil {
		t.Fatal(err)
	}
	if byAge.ColumnLabels[1] != "+1" {
		t.Errorf("age labels = %v", byAge.ColumnLabels)
	}
	if byAge.Values[0][2] != 1 {
		t.Errorf("jan cohort +2 = %v, want 1", byAge.Values[0][2])
	}
	// Feb cohort never reaches age 2.
	if !math.IsNaN(byAge.Values[1][2]) {
		t.Errorf("feb cohort +2 = %v, want NaN", byAge.Values[1][2])
	}
}

func TestWithColumnPersonalized(t *testing.T) {
	records, err := Normalize(scenarioEvents(), simpleMonthly())
	if err != nil {
		t.Fatal(err)
	}
	g := BuildGrid(records, simpleMonthly())

	jan := day(2024, time.January, 1)
	feb := day(2024, time.February, 1)
	withOrders, err := g.WithColumn("orders", []CellValue{
		{Cohort: jan, Period: jan, Value: 4},
		{Cohort: jan, Period: feb, Value: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	perc, err := withOrders.Column(PercPrefix + "orders")
	if err != nil {
		t.Fatal(err)
	}
	for i, cell := range withOrders.Cells() {
		switch {
		case cell.Cohort.Equal(jan) && cell.Period.Equal(jan):
			if perc[i] != 1 {
				t.Errorf("perc_orders @ period 0 = %v, want 1", perc[i])
			}
		case cell.Cohort.Equal(jan) && cell.Period.Equal(feb):
			if perc[i] != 0.5 {
				t.Errorf("perc_orders @ period 1 = %v, want 0.5", perc[i])
			}
		default:
			if !math.IsNaN(perc[i]) {
				t.Errorf("perc_orders for unsupplied cell = %v, want NaN", perc[i])
			}
		}
	}
}
