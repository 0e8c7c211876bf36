package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/httpx"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// ErrTooManyEvents is returned when an ingest request exceeds the
// per-request event limit.
var ErrTooManyEvents = fmt.Errorf("too many events in request (max %d)", config.MaxEventsPerRequest)

// ErrStorageFull is returned when disk usage has reached the
// configured limit.
var ErrStorageFull = fmt.Errorf("storage limit reached, delete old events or raise the limit")

// StorageChecker reports disk usage against a configured limit.
type StorageChecker interface {
	GetUsage() (int64, error)
	GetLimit() int64
}

// Handler handles event ingestion
type Handler struct {
	store   storage.Store
	tracker *EntityTracker
	hub     *EventsHub
	checker StorageChecker
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Store) *Handler {
	return &Handler{
		store:   store,
		tracker: NewEntityTracker(),
	}
}

// SetHub attaches a WebSocket hub for ingest notifications
func (h *Handler) SetHub(hub *EventsHub) {
	h.hub = hub
}

// SetStorageChecker attaches a disk usage checker; writes are refused
// once usage reaches the limit.
func (h *Handler) SetStorageChecker(checker StorageChecker) {
	h.checker = checker
}

// Tracker exposes the entity cardinality tracker for health reporting
func (h *Handler) Tracker() *EntityTracker {
	return h.tracker
}

// IngestRequest represents the request payload
type IngestRequest struct {
	Events []event.Event `json:"events"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

// ingestNotification is pushed to WebSocket clients after each
// successful write so dashboards can refresh without polling.
type ingestNotification struct {
	Type      string    `json:"type"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleIngest handles the /v1/events endpoint
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if len(req.Events) == 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "no events in request")
		return
	}
	if len(req.Events) > config.MaxEventsPerRequest {
		httpx.RespondError(w, http.StatusBadRequest, ErrTooManyEvents)
		return
	}

	for i, e := range req.Events {
		if err := event.Validate(e); err != nil {
			httpx.RespondErrorString(w, http.StatusBadRequest,
				fmt.Sprintf("invalid event at index %d: %v", i, err))
			return
		}
		if err := h.tracker.Check(e.EntityID); err != nil {
			httpx.RespondError(w, http.StatusTooManyRequests, err)
			return
		}
	}

	if h.checker != nil {
		usage, err := h.checker.GetUsage()
		if err == nil && usage >= h.checker.GetLimit() {
			httpx.RespondError(w, http.StatusInsufficientStorage, ErrStorageFull)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Write(ctx, req.Events); err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to write events: %v", err))
		return
	}

	for _, e := range req.Events {
		h.tracker.Record(e.EntityID)
	}

	if h.hub != nil && h.hub.HasClients() {
		h.hub.Broadcast(ingestNotification{
			Type:      "ingest",
			Count:     len(req.Events),
			Timestamp: time.Now(),
		})
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(req.Events),
	})
}

// HandleStats handles the /v1/stats endpoint, reporting storage and
// cardinality usage.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.IngestStatsTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to read storage stats: %v", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"storage":     stats,
		"cardinality": h.tracker.Stats(),
	})
}
