package analytics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/tinypmf/tinypmf/pkg/cohort"
	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/export"
	"github.com/tinypmf/tinypmf/pkg/growth"
	"github.com/tinypmf/tinypmf/pkg/httpx"
	"github.com/tinypmf/tinypmf/pkg/period"
)

// Handler exposes the analytics engine over HTTP
type Handler struct {
	engine *Engine
}

// NewHandler creates an analytics HTTP handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Engine returns the underlying engine (for health reporting)
func (h *Handler) Engine() *Engine {
	return h.engine
}

// parseOptions reads the fit parameters shared by all analytics
// endpoints: granularity (default monthly) and simple (default true).
func parseOptions(r *http.Request) (Options, error) {
	opts := Options{Granularity: period.Monthly, Simple: true}

	if tag := r.URL.Query().Get("granularity"); tag != "" {
		g, err := period.ParseGranularity(tag)
		if err != nil {
			return opts, err
		}
		opts.Granularity = g
	}
	if s := r.URL.Query().Get("simple"); s != "" {
		simple, err := strconv.ParseBool(s)
		if err != nil {
			return opts, errors.New("simple must be a boolean")
		}
		opts.Simple = simple
	}
	return opts, nil
}

// MatrixResponse is the pivoted retention table
type MatrixResponse struct {
	Metric       string    `json:"metric"`
	Axis         string    `json:"axis"`
	Granularity  string    `json:"granularity"`
	CohortLabels []string  `json:"cohort_labels"`
	ColumnLabels []string  `json:"column_labels"`
	Values       [][]Value `json:"values"`
}

// HandleCohortMatrix handles GET /v1/cohorts/matrix
func (h *Handler) HandleCohortMatrix(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = cohort.MetricUniqueUsers
	}
	axis, err := cohort.ParseAxis(r.URL.Query().Get("axis"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.AnalyticsQueryTimeout)
	defer cancel()

	fit, err := h.engine.ensureFit(ctx, opts)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	matrix, err := fit.Matrix(metric, axis)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := export.WriteMatrixCSV(w, matrix); err != nil {
			log.Printf("❌ Failed to write matrix CSV: %v", err)
		}
		return
	}

	httpx.RespondJSON(w, http.StatusOK, MatrixResponse{
		Metric:       matrix.Metric,
		Axis:         string(matrix.Axis),
		Granularity:  string(opts.Granularity),
		CohortLabels: matrix.CohortLabels,
		ColumnLabels: matrix.ColumnLabels,
		Values:       valueRows(matrix.Values),
	})
}

// TableCell is one grid cell in long format with its metric values
type TableCell struct {
	Cohort    string           `json:"cohort"`
	Period    string           `json:"period"`
	PeriodNum int              `json:"period_num"`
	Metrics   map[string]Value `json:"metrics"`
}

// TableResponse is the long-format cohort table
type TableResponse struct {
	Granularity string      `json:"granularity"`
	Metrics     []string    `json:"metrics"`
	Cells       []TableCell `json:"cells"`
}

// HandleCohortTable handles GET /v1/cohorts/table
func (h *Handler) HandleCohortTable(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.AnalyticsQueryTimeout)
	defer cancel()

	fit, err := h.engine.ensureFit(ctx, opts)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	computed, err := fit.Grid.Compute(cohort.StandardMetrics()...)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	columns := computed.Columns()
	names := make([]string, 0, len(columns))
	for _, name := range cohort.StandardMetrics() {
		names = append(names, name, cohort.PercPrefix+name)
	}

	cells := make([]TableCell, len(computed.Cells()))
	for i, cell := range computed.Cells() {
		metrics := make(map[string]Value, len(names))
		for _, name := range names {
			metrics[name] = Value(columns[name][i])
		}
		cells[i] = TableCell{
			Cohort:    opts.Granularity.Label(cell.Cohort),
			Period:    opts.Granularity.Label(cell.Period),
			PeriodNum: cell.PeriodNum,
			Metrics:   metrics,
		}
	}

	httpx.RespondJSON(w, http.StatusOK, TableResponse{
		Granularity: string(opts.Granularity),
		Metrics:     names,
		Cells:       cells,
	})
}

// GrowthRow is one period of growth accounting, JSON-safe
type GrowthRow struct {
	Period string `json:"period"`

	Total       Value `json:"total"`
	New         Value `json:"new"`
	Resurrected Value `json:"resurrected"`
	Expansion   Value `json:"expansion"`
	Contraction Value `json:"contraction"`
	Retained    Value `json:"retained"`
	Churned     Value `json:"churned"`

	NewEntities    int `json:"new_entities"`
	ActiveEntities int `json:"active_entities"`
	EventCount     int `json:"event_count"`

	NewRate         Value `json:"new_rate"`
	ResurrectedRate Value `json:"resurrected_rate"`
	ExpansionRate   Value `json:"expansion_rate"`
	ContractionRate Value `json:"contraction_rate"`
	RetainedRate    Value `json:"retained_rate"`
	ChurnedRate     Value `json:"churned_rate"`

	GrowthRate     Value `json:"growth_rate"`
	GrossRetention Value `json:"gross_retention"`
	QuickRatio     Value `json:"quick_ratio"`
	NetChurn       Value `json:"net_churn"`
}

// GrowthRows converts a growth table to its JSON-safe row form, with
// undefined rates marshaling as null instead of failing on NaN. Every
// serialized growth table (HTTP and WebSocket) goes through this.
func GrowthRows(table *growth.Table) []GrowthRow {
	labels := table.PeriodLabels()
	rows := make([]GrowthRow, 0, len(labels))
	for i, row := range table.Rows() {
		rows = append(rows, GrowthRow{
			Period:          labels[i],
			Total:           Value(row.Total),
			New:             Value(row.New),
			Resurrected:     Value(row.Resurrected),
			Expansion:       Value(row.Expansion),
			Contraction:     Value(row.Contraction),
			Retained:        Value(row.Retained),
			Churned:         Value(row.Churned),
			NewEntities:     row.NewEntities,
			ActiveEntities:  row.ActiveEntities,
			EventCount:      row.EventCount,
			NewRate:         Value(row.NewRate),
			ResurrectedRate: Value(row.ResurrectedRate),
			ExpansionRate:   Value(row.ExpansionRate),
			ContractionRate: Value(row.ContractionRate),
			RetainedRate:    Value(row.RetainedRate),
			ChurnedRate:     Value(row.ChurnedRate),
			GrowthRate:      Value(row.GrowthRate),
			GrossRetention:  Value(row.GrossRetention),
			QuickRatio:      Value(row.QuickRatio),
			NetChurn:        Value(row.NetChurn),
		})
	}
	return rows
}

// GrowthResponse is the growth accounting table, optionally with a
// compound growth column
type GrowthResponse struct {
	Granularity   string      `json:"granularity"`
	Rows          []GrowthRow `json:"rows"`
	CompoundLabel string      `json:"compound_label,omitempty"`
	Compound      []Value     `json:"compound,omitempty"`
}

// HandleGrowth handles GET /v1/growth
func (h *Handler) HandleGrowth(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.AnalyticsQueryTimeout)
	defer cancel()

	fit, err := h.engine.ensureFit(ctx, opts)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	table := fit.Growth

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := export.WriteGrowthCSV(w, table); err != nil {
			log.Printf("❌ Failed to write growth CSV: %v", err)
		}
		return
	}

	resp := GrowthResponse{
		Granularity: string(opts.Granularity),
		Rows:        GrowthRows(table),
	}

	if c := r.URL.Query().Get("compound"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			httpx.RespondErrorString(w, http.StatusBadRequest, "compound must be an integer")
			return
		}
		col, err := table.CompoundGrowth(n)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		resp.CompoundLabel = table.CompoundLabel(n)
		resp.Compound = values(col)
	}

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// respondEngineError maps engine errors to HTTP status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cohort.ErrUnknownMetric),
		errors.Is(err, cohort.ErrInvalidAxis),
		errors.Is(err, cohort.ErrQuantityRequired),
		errors.Is(err, period.ErrInvalidGranularity),
		errors.Is(err, growth.ErrInvalidLookback):
		httpx.RespondError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrNotFitted):
		httpx.RespondError(w, http.StatusConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.RespondErrorString(w, http.StatusGatewayTimeout, "analytics query timed out after "+config.AnalyticsQueryTimeout.String())
	default:
		httpx.RespondError(w, http.StatusInternalServerError, err)
	}
}

// FitStatus summarizes the current fit for health reporting
type FitStatus struct {
	Fitted      bool      `json:"fitted"`
	Granularity string    `json:"granularity,omitempty"`
	Simple      bool      `json:"simple,omitempty"`
	EventCount  int       `json:"event_count,omitempty"`
	FittedAt    time.Time `json:"fitted_at,omitempty"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
}

// Status reports the engine's fit state
func (h *Handler) Status() FitStatus {
	fit, err := h.engine.Current()
	if err != nil {
		return FitStatus{Fitted: false}
	}
	return FitStatus{
		Fitted:      true,
		Granularity: string(fit.Options.Granularity),
		Simple:      fit.Options.Simple,
		EventCount:  fit.EventCount,
		FittedAt:    fit.FittedAt,
		DurationMS:  fit.Duration.Milliseconds(),
	}
}
