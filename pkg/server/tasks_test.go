package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinypmf/tinypmf/pkg/analytics"
	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/ingest"
	"github.com/tinypmf/tinypmf/pkg/period"
	"github.com/tinypmf/tinypmf/pkg/storage/memory"
)

// fitTwoMonths fits a weighted two-period dataset; the first period's
// rate fields are always NaN.
func fitTwoMonths(t *testing.T) *analytics.Fit {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	now := time.Now().UTC()
	m0 := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC)
	m1 := m0.AddDate(0, -1, 0)

	events := []event.Event{
		{EntityID: "acct-1", Timestamp: m1, Quantity: 10},
		{EntityID: "acct-1", Timestamp: m0, Quantity: 12},
	}
	if err := store.Write(context.Background(), events); err != nil {
		t.Fatalf("Failed to write test events: %v", err)
	}

	engine := analytics.NewEngine(store)
	fit, err := engine.Fit(context.Background(), analytics.Options{
		Granularity: period.Monthly,
		Simple:      false,
	})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return fit
}

func TestGrowthUpdateMarshalsUndefinedRates(t *testing.T) {
	fit := fitTwoMonths(t)

	if rows := fit.Growth.Rows(); !math.IsNaN(rows[0].NewRate) {
		t.Fatalf("Expected NaN new_rate in first period, got %v", rows[0].NewRate)
	}

	data, err := json.Marshal(growthUpdate(fit))
	if err != nil {
		t.Fatalf("Broadcast payload failed to marshal: %v", err)
	}

	var decoded struct {
		Type        string `json:"type"`
		Granularity string `json:"granularity"`
		EventCount  int    `json:"event_count"`
		Rows        []struct {
			Total   float64  `json:"total"`
			NewRate *float64 `json:"new_rate"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to parse broadcast payload: %v", err)
	}

	if decoded.Type != "growth_update" {
		t.Errorf("type = %q, want growth_update", decoded.Type)
	}
	if decoded.Granularity != "m" {
		t.Errorf("granularity = %q, want m", decoded.Granularity)
	}
	if decoded.EventCount != 2 {
		t.Errorf("event_count = %d, want 2", decoded.EventCount)
	}
	if len(decoded.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(decoded.Rows))
	}
	if decoded.Rows[0].Total != 10 {
		t.Errorf("first period total = %v, want 10", decoded.Rows[0].Total)
	}
	// Undefined rates come through as null, not a marshal failure
	if decoded.Rows[0].NewRate != nil {
		t.Errorf("first period new_rate = %v, want null", *decoded.Rows[0].NewRate)
	}
}

func TestGrowthUpdateReachesWebSocketClient(t *testing.T) {
	fit := fitTwoMonths(t)

	hub := ingest.NewEventsHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	handler := ingest.NewHandler(memory.New())
	srv := httptest.NewServer(handler.HandleWebSocket(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	// Registration goes through the hub's channel
	deadline := time.Now().Add(2 * time.Second)
	for !hub.HasClients() {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered with hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := hub.Broadcast(growthUpdate(fit)); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var got struct {
		Type string            `json:"type"`
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(message, &got); err != nil {
		t.Fatalf("Broadcast message is not valid JSON: %v", err)
	}
	if got.Type != "growth_update" {
		t.Errorf("type = %q, want growth_update", got.Type)
	}
	if len(got.Rows) != 2 {
		t.Errorf("Expected 2 rows in broadcast, got %d", len(got.Rows))
	}
}
