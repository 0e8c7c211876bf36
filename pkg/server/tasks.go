package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tinypmf/tinypmf/pkg/analytics"
	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/ingest"
	"github.com/tinypmf/tinypmf/pkg/period"
	"github.com/tinypmf/tinypmf/pkg/storage"
	"github.com/tinypmf/tinypmf/pkg/storage/badger"
)

// BroadcastGrowth periodically refits the analytics engine and pushes
// the growth accounting table to WebSocket clients.
// Uses exponential backoff on errors to prevent log spam during outages.
func BroadcastGrowth(ctx context.Context, engine *analytics.Engine, hub *ingest.EventsHub) {
	ticker := time.NewTicker(config.RefitCheckInterval)
	defer ticker.Stop()

	// Exponential backoff state for error handling
	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Skip refitting if no clients connected - saves resources
			if !hub.HasClients() {
				continue
			}

			// Keep pushing whatever granularity the last fit used;
			// default to monthly active-user accounting before any fit.
			opts := analytics.Options{Granularity: period.Monthly, Simple: true}
			if current, err := engine.Current(); err == nil {
				opts = current.Options
			}

			fitCtx, cancel := context.WithTimeout(ctx, config.AnalyticsQueryTimeout)
			fit, err := engine.Fit(fitCtx, opts)
			cancel()
			if err != nil {
				consecutiveErrors++
				now := time.Now()

				// Exponential backoff: 1s, 2s, 4s, 8s, 16s, 32s, 64s, 128s, 256s (max 5m)
				// Prevents log spam during persistent errors or outages
				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > maxBackoff {
					backoff = maxBackoff
				}

				// Only log if enough time has passed since last error
				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					log.Printf("Failed to refit for broadcast (error #%d, backoff %v): %v",
						consecutiveErrors, backoff, err)
					lastErrorTime = now
				}
				continue
			}

			// Reset error count on success
			if consecutiveErrors > 0 {
				log.Printf("Growth broadcast recovered after %d errors", consecutiveErrors)
				consecutiveErrors = 0
			}

			if len(fit.Growth.Rows()) == 0 {
				continue
			}

			if err := hub.Broadcast(growthUpdate(fit)); err != nil {
				log.Printf("Failed to broadcast growth update: %v", err)
			}
		}
	}
}

// growthUpdate builds the WebSocket payload for a fitted growth table.
// Rows go through the JSON-safe GrowthRow mapping: the first period's
// rates are always NaN, which encoding/json refuses to marshal raw.
func growthUpdate(fit *analytics.Fit) map[string]interface{} {
	return map[string]interface{}{
		"type":        "growth_update",
		"timestamp":   time.Now().Unix(),
		"granularity": string(fit.Options.Granularity),
		"rows":        analytics.GrowthRows(fit.Growth),
		"event_count": fit.EventCount,
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim disk space.
// BadgerDB uses LSM trees which accumulate deleted data in value log.
// GC is essential to prevent unbounded disk growth.
func RunBadgerGC(store storage.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	// Type assert to get underlying BadgerDB
	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			// Run GC with 0.5 discard ratio (reclaim space if 50% of file is garbage)
			log.Println("Running BadgerDB garbage collection...")
			start := time.Now()

			// RunValueLogGC runs until no more garbage can be collected
			// We limit to 1 iteration per tick to avoid blocking
			err := badgerStore.RunGC(0.5)
			if err != nil {
				// Not an error if no GC was needed
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}

// min returns the minimum of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
