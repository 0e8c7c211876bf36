// Package cohort implements cohort retention analysis over event logs.
//
// The pipeline has three stages, each a pure transform:
//
//	records := cohort.Normalize(events, cfg)   // assign period + cohort
//	grid := cohort.BuildGrid(records, cfg)     // dense cohort x period base grid
//	grid, _ = grid.Compute(cohort.MetricTotal) // attach derived metric columns
//
// Entities are assigned to the cohort of their first observed period.
// The grid is dense: every cohort is crossed with every observed
// period at or after it, zero-filled where no activity occurred, so
// period-over-period views never skip silent periods. Each metric
// column carries a "perc_" sibling normalized against the cohort's
// period-0 value; undefined ratios surface as NaN, never as zero.
package cohort
