package memory

import (
	"context"
	"testing"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

func TestMemoryStorage_WriteAndQuery(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := []event.Event{
		{EntityID: "acct-1", Timestamp: now, Quantity: 42},
		{EntityID: "acct-2", Timestamp: now, Quantity: 13},
	}

	err := store.Write(ctx, testEvents)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-1 * time.Hour),
		End:   now.Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 2 {
		t.Errorf("Expected 2 events, got %d", len(results))
	}
}

func TestMemoryStorage_QueryEntityFilter(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := []event.Event{
		{EntityID: "acct-1", Timestamp: now, Quantity: 1},
		{EntityID: "acct-1", Timestamp: now, Quantity: 2},
		{EntityID: "acct-2", Timestamp: now, Quantity: 3},
	}
	store.Write(ctx, testEvents)

	results, err := store.Query(ctx, storage.QueryRequest{
		Start:     now.Add(-1 * time.Hour),
		End:       now.Add(1 * time.Hour),
		EntityIDs: []string{"acct-1"},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 2 {
		t.Errorf("Expected 2 acct-1 events, got %d", len(results))
	}
	for _, e := range results {
		if e.EntityID != "acct-1" {
			t.Errorf("Expected entity acct-1, got %s", e.EntityID)
		}
	}
}

func TestMemoryStorage_QueryTimeRange(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := []event.Event{
		{EntityID: "a", Timestamp: now.Add(-2 * time.Hour)},
		{EntityID: "b", Timestamp: now.Add(-1 * time.Hour)},
		{EntityID: "c", Timestamp: now},
		{EntityID: "d", Timestamp: now.Add(1 * time.Hour)},
	}
	store.Write(ctx, testEvents)

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-1 * time.Hour),
		End:   now.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	// Should get b and c (not a or d)
	if len(results) != 2 {
		t.Errorf("Expected 2 events in time range, got %d", len(results))
	}
}

func TestMemoryStorage_QueryLimit(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := make([]event.Event, 10)
	for i := 0; i < 10; i++ {
		testEvents[i] = event.Event{
			EntityID:  "acct-1",
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
	}
	store.Write(ctx, testEvents)

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-1 * time.Hour),
		End:   now.Add(1 * time.Hour),
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 5 {
		t.Errorf("Expected limit of 5 events, got %d", len(results))
	}
}

func TestMemoryStorage_Delete(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := []event.Event{
		{EntityID: "old", Timestamp: now.Add(-2 * time.Hour)},
		{EntityID: "recent", Timestamp: now},
	}
	store.Write(ctx, testEvents)

	err := store.Delete(ctx, now.Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-3 * time.Hour),
		End:   now.Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 1 {
		t.Errorf("Expected 1 event after deletion, got %d", len(results))
	}
	if results[0].EntityID != "recent" {
		t.Errorf("Expected recent, got %s", results[0].EntityID)
	}
}

func TestMemoryStorage_Stats(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	testEvents := []event.Event{
		{EntityID: "acct-1", Timestamp: now.Add(-1 * time.Hour), Quantity: 1},
		{EntityID: "acct-1", Timestamp: now, Quantity: 2},
		{EntityID: "acct-2", Timestamp: now, Quantity: 3},
	}
	store.Write(ctx, testEvents)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 total events, got %d", stats.TotalEvents)
	}
	if stats.TotalEntities != 2 {
		t.Errorf("Expected 2 distinct entities, got %d", stats.TotalEntities)
	}

	expectedOldest := now.Add(-1 * time.Hour)
	if !stats.OldestEvent.Equal(expectedOldest) {
		t.Errorf("Expected oldest event at %v, got %v", expectedOldest, stats.OldestEvent)
	}
	if !stats.NewestEvent.Equal(now) {
		t.Errorf("Expected newest event at %v, got %v", now, stats.NewestEvent)
	}
}

func TestMemoryStorage_ConcurrentWrites(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			events := []event.Event{
				{EntityID: "concurrent", Timestamp: now, Quantity: float64(id)},
			}
			store.Write(ctx, events)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-1 * time.Hour),
		End:   now.Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 10 {
		t.Errorf("Expected 10 events from concurrent writes, got %d", len(results))
	}
}

func TestMemoryStorage_EmptyQuery(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	results, err := store.Query(ctx, storage.QueryRequest{
		Start: now.Add(-1 * time.Hour),
		End:   now.Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 events from empty storage, got %d", len(results))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEvents != 0 {
		t.Errorf("Expected 0 total events, got %d", stats.TotalEvents)
	}
}
