// Command example generates a year of synthetic subscription activity
// and prints the retention matrix and growth accounting for it. It
// exercises the library API directly with no server required:
//
//	go run ./cmd/example
package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/tinypmf/tinypmf/pkg/cohort"
	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/growth"
	"github.com/tinypmf/tinypmf/pkg/period"
)

const (
	months          = 12
	signupsPerMonth = 40
	monthlyChurn    = 0.15 // chance an active subscriber cancels each month
	expansionChance = 0.10 // chance an active subscriber upgrades
	basePrice       = 29.0
)

func main() {
	rng := rand.New(rand.NewSource(42))
	events := simulateSubscriptions(rng)
	fmt.Printf("Simulated %d billing events across %d months\n\n", len(events), months)

	cfg := cohort.Config{
		Granularity: period.Monthly,
		HasQuantity: true,
	}
	records, err := cohort.Normalize(events, cfg)
	if err != nil {
		log.Fatalf("normalize: %v", err)
	}

	grid := cohort.BuildGrid(records, cfg)
	computed, err := grid.Compute("unique_users")
	if err != nil {
		log.Fatalf("compute: %v", err)
	}

	matrix, err := computed.Table("perc_unique_users", cohort.AxisPeriodNum)
	if err != nil {
		log.Fatalf("matrix: %v", err)
	}
	printMatrix(matrix)

	table := growth.Compute(records, period.Monthly)
	printGrowth(table)
}

// simulateSubscriptions produces one billing event per active
// subscriber per month. Subscribers join in monthly waves, churn at a
// fixed hazard, and occasionally expand to a higher plan.
func simulateSubscriptions(rng *rand.Rand) []event.Event {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	type subscriber struct {
		id     string
		price  float64
		active bool
	}

	var subs []*subscriber
	var events []event.Event

	for m := 0; m < months; m++ {
		billing := start.AddDate(0, m, 14)

		// New signups this month
		for i := 0; i < signupsPerMonth; i++ {
			subs = append(subs, &subscriber{
				id:     fmt.Sprintf("acct_%03d_%02d", i, m),
				price:  basePrice,
				active: true,
			})
		}

		for _, s := range subs {
			if !s.active {
				continue
			}
			if rng.Float64() < monthlyChurn {
				s.active = false
				continue
			}
			if rng.Float64() < expansionChance {
				s.price += basePrice
			}
			events = append(events, event.Event{
				EntityID:  s.id,
				Timestamp: billing,
				Quantity:  s.price,
			})
		}
	}

	return events
}

func printMatrix(m *cohort.Matrix) {
	fmt.Printf("Retention matrix (%s by %s)\n", m.Metric, m.Axis)
	fmt.Printf("%-10s", "cohort")
	for _, label := range m.ColumnLabels {
		fmt.Printf("%8s", label)
	}
	fmt.Println()

	for i, row := range m.Values {
		fmt.Printf("%-10s", m.CohortLabels[i])
		for _, v := range row {
			if math.IsNaN(v) {
				fmt.Printf("%8s", "-")
			} else {
				fmt.Printf("%7.0f%%", v*100)
			}
		}
		fmt.Println()
	}
	fmt.Println()
}

func printGrowth(t *growth.Table) {
	fmt.Println("Growth accounting (monthly recurring revenue)")
	fmt.Printf("%-10s%10s%10s%10s%10s%10s%10s%8s\n",
		"period", "total", "new", "resurr", "expand", "contract", "churned", "quick")

	labels := t.PeriodLabels()
	for i, row := range t.Rows() {
		quick := "-"
		if !math.IsNaN(row.QuickRatio) {
			quick = fmt.Sprintf("%.2f", row.QuickRatio)
		}
		fmt.Printf("%-10s%10.0f%10.0f%10.0f%10.0f%10.0f%10.0f%8s\n",
			labels[i],
			row.Total, row.New, row.Resurrected,
			row.Expansion, row.Contraction, row.Churned,
			quick)
	}
}
