package sdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	client, err := New(ClientConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.config.Endpoint != "http://localhost:8080/v1/events" {
		t.Errorf("Endpoint = %v, want default", client.config.Endpoint)
	}
	if client.config.FlushEvery != 5*time.Second {
		t.Errorf("FlushEvery = %v, want 5s", client.config.FlushEvery)
	}
}

func TestStartTwice(t *testing.T) {
	client, err := New(ClientConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer client.Stop()

	if err := client.Start(context.Background()); err == nil {
		t.Error("second Start() should error")
	}
}

func TestTrackBeforeStartIsNoop(t *testing.T) {
	client, err := New(ClientConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Must not panic or queue anything
	client.Track("user_1")
	if err := client.Flush(); err != nil {
		t.Errorf("Flush() before start should not error, got %v", err)
	}
}

func TestTrackAndFlush(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Events []map[string]interface{} `json:"events"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("failed to parse payload: %v", err)
		}
		mu.Lock()
		received = append(received, payload.Events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(ClientConfig{
		Endpoint:   server.URL,
		FlushEvery: 1 * time.Hour, // Only manual flush
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer client.Stop()

	client.Track("user_a")
	client.TrackQuantity("user_b", 29.99)
	client.TrackAt("user_c", 5, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	if err := client.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("received %d events, want 3", len(received))
	}
	if received[0]["entity_id"] != "user_a" {
		t.Errorf("entity_id = %v, want user_a", received[0]["entity_id"])
	}
	if received[1]["quantity"] != 29.99 {
		t.Errorf("quantity = %v, want 29.99", received[1]["quantity"])
	}
}
