package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/storage"
)

// Storage implements storage.Store using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB

	// seq disambiguates events with identical entity and timestamp,
	// which are common in date-granular datasets.
	seq atomic.Uint32
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = use defaults based on environment)
	// Recommended: 64-128 MB for local dev, 256-512 MB for production
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// SAFETY: Conservative memory limits for laptops
	// BadgerDB defaults: 64 MB memtable, 5 x 64 MB = 320 MB total
	// We use 48 MB total (16 MB memtable + 32 MB cache) for self-hosted
	var memTableSize, valueLogMaxEntries int64
	if cfg.MaxMemoryMB > 0 {
		// User specified limit - use it
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
		valueLogMaxEntries = 5000
	} else {
		// Default: Laptop-friendly (48 MB total)
		// 16 MB memtable is minimum for decent performance
		// Below 16 MB causes excessive disk flushes
		memTableSize = 16 * 1024 * 1024
		valueLogMaxEntries = 5000
	}

	// CRITICAL MEMORY LIMITS: BadgerDB has multiple unbounded memory consumers
	// Without these limits, it can consume 1-2 GB even with small memtable
	blockCacheSize := memTableSize / 2 // Block cache: 50% of memtable
	indexCacheSize := memTableSize / 4 // Index cache: 25% of memtable

	// Optimize for append-mostly event log with strict memory bounds
	opts = opts.
		// Compression and versioning
		WithCompression(options.Snappy). // Compression for event payloads
		WithNumVersionsToKeep(1).        // Events are immutable, no versioning

		// Memory table configuration
		WithMemTableSize(memTableSize). // Limit memory table size
		WithNumMemtables(3).            // Limit concurrent memtables (3 = active + 2 flushing)

		// Block and index caching (CRITICAL for memory bounds)
		WithBlockCacheSize(blockCacheSize). // Limit block cache to prevent unbounded growth
		WithIndexCacheSize(indexCacheSize). // Limit index cache to prevent unbounded growth

		// LSM tree configuration (reduces memory and disk usage)
		WithMaxLevels(4).               // Reduce LSM depth (default 7) for smaller datasets
		WithNumLevelZeroTables(2).      // Trigger compaction earlier (default 5)
		WithNumLevelZeroTablesStall(4). // Hard limit before stalling writes (default 10)
		WithValueThreshold(1024).       // Keep small values in LSM, large in vlog (default 1MB)
		WithNumCompactors(1).           // Limit compaction threads to 1 (reduces CPU/memory)

		// Value log configuration
		WithValueLogMaxEntries(uint32(valueLogMaxEntries)). // Limit value log entries
		WithValueLogFileSize(64 << 20)                      // CRITICAL: 64 MB value log files instead of default 2GB!

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Write stores events in BadgerDB
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) Write(ctx context.Context, events []event.Event) error {
	// Check context before starting expensive operation
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, e := range events {
				// Check context periodically (every 100 events)
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				key := s.makeKey(e.EntityID, e.Timestamp)
				value, err := encodeEvent(e)
				if err != nil {
					return fmt.Errorf("failed to encode event: %w", err)
				}

				if err := txn.Set(key, value); err != nil {
					return fmt.Errorf("failed to write event: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Context cancelled while waiting for operation to complete
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Query retrieves events matching the request
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]event.Event, error) {
	// Check context before starting expensive operation
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	type queryResult struct {
		results []event.Event
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		var iterCount int

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchSize = 100

			it := txn.NewIterator(opts)
			defer it.Close()

			// Scan all keys; entity filters are sparse enough that a
			// full scan plus decode-side filtering keeps the key
			// layout simple.
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				// Check for context cancellation every 1000 iterations
				// so long scans cannot block shutdown or exceed timeouts
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()
				err := item.Value(func(val []byte) error {
					e, err := decodeEvent(val)
					if err != nil {
						return err
					}
					if !req.Matches(e) {
						return nil
					}
					res.results = append(res.results, e)
					return nil
				})
				if err != nil {
					return err
				}

				// Early exit if limit reached
				if req.Limit > 0 && len(res.results) >= req.Limit {
					break
				}
			}

			// Log slow queries for performance monitoring
			elapsed := time.Since(startTime)
			if elapsed > 5*time.Second {
				fmt.Printf("⚠️  Slow query completed in %v (%d iterations, %d results)\n", elapsed, iterCount, len(res.results))
			}

			return nil
		})
		done <- res
	}()

	select {
	case res := <-done:
		return res.results, res.err
	case <-ctx.Done():
		// Context cancelled while waiting for operation to complete
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// Delete removes events older than the given time
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	// Check context before starting expensive operation
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.PrefetchValues = false

			it := txn.NewIterator(iterOpts)
			defer it.Close()

			var keysToDelete [][]byte
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				// Check context periodically (every 1000 iterations)
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()

				// Timestamp is embedded in the key, no value read needed
				_, ts := parseKey(item.Key())
				if !ts.Before(before) {
					continue
				}

				keysToDelete = append(keysToDelete, item.KeyCopy(nil))
			}

			for _, key := range keysToDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Context cancelled while waiting for operation to complete
		return fmt.Errorf("delete operation cancelled: %w", ctx.Err())
	}
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection
// This reclaims disk space from deleted values
// discardRatio: run GC if this fraction of file can be discarded (0.5 = 50%)
// Returns error only if GC failed, nil if GC not needed or succeeded
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	// Check context before starting expensive operation
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type statsResult struct {
		stats *storage.Stats
		err   error
	}
	done := make(chan statsResult, 1)

	go func() {
		var res statsResult
		stats := &storage.Stats{}

		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			entities := make(map[uint64]bool)
			var oldestTS, newestTS time.Time
			var iterCount int

			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++

				// Check context periodically (every 1000 iterations)
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				item := it.Item()
				stats.TotalEvents++

				// Parse key to get entity hash and timestamp
				entityHash, ts := parseKey(item.Key())
				entities[entityHash] = true

				if oldestTS.IsZero() || ts.Before(oldestTS) {
					oldestTS = ts
				}
				if newestTS.IsZero() || ts.After(newestTS) {
					newestTS = ts
				}
			}

			stats.TotalEntities = uint64(len(entities))
			stats.OldestEvent = oldestTS
			stats.NewestEvent = newestTS
			return nil
		})

		if res.err == nil {
			// Get DB size from LSM
			lsmSize, vlogSize := s.db.Size()
			stats.SizeBytes = uint64(lsmSize + vlogSize)
		}

		res.stats = stats
		done <- res
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		// Context cancelled while waiting for operation to complete
		return nil, fmt.Errorf("stats operation cancelled: %w", ctx.Err())
	}
}

// makeKey creates a sortable key for an event.
// Format: [entity_hash (8 bytes)][timestamp (8 bytes)][seq (4 bytes)]
// The sequence counter keeps events distinct when the same entity has
// multiple events at the same timestamp (date-granular uploads).
func (s *Storage) makeKey(entityID string, ts time.Time) []byte {
	hash := xxhash.Sum64String(entityID)

	key := make([]byte, 20)
	binary.BigEndian.PutUint64(key[0:8], hash)
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint32(key[16:20], s.seq.Add(1))

	return key
}

// parseKey extracts entity hash and timestamp from a storage key
func parseKey(key []byte) (uint64, time.Time) {
	hash := binary.BigEndian.Uint64(key[0:8])
	tsNano := binary.BigEndian.Uint64(key[8:16])
	return hash, time.Unix(0, int64(tsNano))
}

// encodeEvent serializes an event to bytes
func encodeEvent(e event.Event) ([]byte, error) {
	return json.Marshal(e)
}

// decodeEvent deserializes bytes to an event
func decodeEvent(data []byte) (event.Event, error) {
	var e event.Event
	err := json.Unmarshal(data, &e)
	return e, err
}
