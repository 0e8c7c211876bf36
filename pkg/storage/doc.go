/*
Package storage provides the pluggable storage abstraction for tinypmf events.

# Storage Interface

tinypmf uses an interface-based design to support multiple storage backends:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + compression) for persistent storage

All backends implement the Store interface:

	type Store interface {
	    Write(ctx context.Context, events []event.Event) error
	    Query(ctx context.Context, req QueryRequest) ([]event.Event, error)
	    Delete(ctx context.Context, before time.Time) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Why Pluggable Storage?

Different use cases need different backends:

  - Development: Memory backend (fast, no disk I/O)
  - Production: BadgerDB (persistent, compressed, fast writes)
  - Testing: Memory backend (no cleanup, fast teardown)

By abstracting storage, you can switch backends without changing application code.

# Usage Example

	import (
	    "context"
	    "github.com/tinypmf/tinypmf/pkg/storage/badger"
	)

	// Create storage
	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	// Write events
	events := []event.Event{
	    {EntityID: "acct-42", Timestamp: time.Now(), Quantity: 99.0},
	}
	err = store.Write(context.Background(), events)

	// Query events
	results, err := store.Query(context.Background(), storage.QueryRequest{
	    Start: time.Now().AddDate(-1, 0, 0),
	    End:   time.Now(),
	})

	// Get statistics
	stats, err := store.Stats(context.Background())
	fmt.Printf("Total events: %d\n", stats.TotalEvents)
	fmt.Printf("Total entities: %d\n", stats.TotalEntities)
	fmt.Printf("Storage size: %d bytes\n", stats.SizeBytes)

# Query Filtering

QueryRequest supports several filters:

	// Filter by time range only
	req := QueryRequest{
	    Start: time.Now().AddDate(0, -6, 0),
	    End:   time.Now(),
	}

	// Filter by entity ids
	req := QueryRequest{
	    Start:     startTime,
	    End:       endTime,
	    EntityIDs: []string{"acct-42", "acct-7"},
	}

	// Limit results
	req := QueryRequest{
	    Start: startTime,
	    End:   endTime,
	    Limit: 100000, // Return max 100k events
	}

# Retention & Deletion

Delete removes events older than a cutoff:

	store.Delete(ctx, time.Now().AddDate(-2, 0, 0))

Deleting history is not free for analytics: an entity whose earliest
events are removed will be re-cohorted to its earliest surviving
period on the next fit. Keep at least the full window you intend to
analyze.

# Best Practices

1. Always call Close() when done to flush pending writes
2. Use context.WithTimeout() to prevent hung queries
3. Monitor Stats() to track entity cardinality and storage growth
4. Batch writes when possible (pass []Event instead of single events)

# See Also

  - memory.New() for in-memory storage
  - badger.New() for persistent BadgerDB storage
*/
package storage
