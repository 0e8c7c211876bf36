// Package analytics ties storage to the cohort and growth engines and
// exposes the results over HTTP. An Engine owns one fitted dataset at
// a time; refits replace it atomically so readers never see a half
// built grid.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinypmf/tinypmf/pkg/cohort"
	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/growth"
	"github.com/tinypmf/tinypmf/pkg/period"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// ErrNotFitted is returned when results are requested before any fit
// has completed.
var ErrNotFitted = errors.New("no fitted dataset: run a fit first")

// Options selects how a fit interprets the event log.
type Options struct {
	Granularity period.Granularity
	Simple      bool
}

// Fit is one immutable fitted dataset: the base grid plus the growth
// table, with fit metadata for health reporting.
type Fit struct {
	Options    Options
	Grid       *cohort.Grid
	Growth     *growth.Table
	EventCount int
	FittedAt   time.Time
	Duration   time.Duration
}

// FitObserver receives fit outcomes, typically for health reporting.
type FitObserver interface {
	RecordSuccess(duration time.Duration)
	RecordFailure(err error)
}

// Engine loads events from storage and fits the analytics engines
// over them.
type Engine struct {
	store    storage.Store
	observer FitObserver

	mu  sync.RWMutex
	fit *Fit
}

// NewEngine creates an engine over the given store
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// SetObserver attaches a fit observer. Must be called before serving.
func (e *Engine) SetObserver(o FitObserver) {
	e.observer = o
}

// Fit queries the event log and rebuilds the cohort grid and growth
// table with the given options. The previous fit stays readable until
// the new one is swapped in.
func (e *Engine) Fit(ctx context.Context, opts Options) (*Fit, error) {
	start := time.Now()

	events, err := e.store.Query(ctx, storage.QueryRequest{
		Start: start.Add(-config.AnalyticsDefaultWindow),
		End:   start.Add(24 * time.Hour),
		Limit: config.AnalyticsMaxEvents,
	})
	if err != nil {
		err = fmt.Errorf("failed to load events: %w", err)
		if e.observer != nil {
			e.observer.RecordFailure(err)
		}
		return nil, err
	}

	cfg := cohort.Config{
		Granularity: opts.Granularity,
		Simple:      opts.Simple,
		// Ingested events always carry the quantity field; weighted
		// fits over quantity-less data only arise from imports.
		HasQuantity: true,
	}
	records, err := cohort.Normalize(events, cfg)
	if err != nil {
		if e.observer != nil {
			e.observer.RecordFailure(err)
		}
		return nil, err
	}

	fit := &Fit{
		Options:    opts,
		Grid:       cohort.BuildGrid(records, cfg),
		Growth:     growth.Compute(records, opts.Granularity),
		EventCount: len(events),
		FittedAt:   start,
		Duration:   time.Since(start),
	}

	e.mu.Lock()
	e.fit = fit
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.RecordSuccess(fit.Duration)
	}
	return fit, nil
}

// Current returns the active fit, or ErrNotFitted.
func (e *Engine) Current() (*Fit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.fit == nil {
		return nil, ErrNotFitted
	}
	return e.fit, nil
}

// ensureFit returns a fit matching opts, reusing the current one when
// its options match and refitting otherwise.
func (e *Engine) ensureFit(ctx context.Context, opts Options) (*Fit, error) {
	e.mu.RLock()
	fit := e.fit
	e.mu.RUnlock()

	if fit != nil && fit.Options == opts {
		return fit, nil
	}
	return e.Fit(ctx, opts)
}

// Matrix computes a metric over the fit's grid and pivots it along
// the given axis. Fits are immutable, so the result never mixes
// options with a refit that lands concurrently on the engine.
func (f *Fit) Matrix(metric string, axis cohort.Axis) (*cohort.Matrix, error) {
	// perc_ columns ride along with their base metric.
	base := strings.TrimPrefix(metric, cohort.PercPrefix)
	computed, err := f.Grid.Compute(base)
	if err != nil {
		return nil, err
	}
	return computed.Table(metric, axis)
}
