package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/sdk/transport"
)

// Config holds configuration for the batcher
type Config struct {
	MaxBatchSize int
	FlushEvery   time.Duration
}

// Batcher batches events and sends them periodically
type Batcher struct {
	config    Config
	transport transport.Transport

	events []event.Event
	mu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flushing atomic.Bool // Prevents concurrent flushes and unbounded goroutine spawning
}

// New creates a new batcher
func New(transport transport.Transport, config Config) *Batcher {
	return &Batcher{
		config:    config,
		transport: transport,
		events:    make([]event.Event, 0, config.MaxBatchSize),
		done:      make(chan struct{}),
	}
}

// Start starts the batcher
func (b *Batcher) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	go b.flushLoop()
	return nil
}

// Add adds an event to the batch. When the batch is full a single
// background flush is started; CompareAndSwap ensures only one flush
// goroutine runs at a time even under concurrent Add calls.
func (b *Batcher) Add(e event.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	shouldFlush := len(b.events) >= b.config.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		go func() {
			b.flush()
			b.flushing.Store(false)
		}()
	}
}

// Flush flushes all pending events
func (b *Batcher) Flush() error {
	b.mu.Lock()
	if len(b.events) == 0 {
		b.mu.Unlock()
		return nil
	}

	events := make([]event.Event, len(b.events))
	copy(events, b.events)
	b.events = b.events[:0]
	b.mu.Unlock()

	return b.sendEvents(events)
}

// Stop stops the batcher
func (b *Batcher) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}

	// Wait for flush loop to finish
	<-b.done

	// Flush remaining events
	return b.Flush()
}

// flushLoop periodically flushes events
func (b *Batcher) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			// Only flush if no flush is already running
			if b.flushing.CompareAndSwap(false, true) {
				b.flush()
				b.flushing.Store(false)
			}
		}
	}
}

// flush flushes events without blocking
func (b *Batcher) flush() {
	b.mu.Lock()
	if len(b.events) == 0 {
		b.mu.Unlock()
		return
	}

	events := make([]event.Event, len(b.events))
	copy(events, b.events)
	b.events = b.events[:0]
	b.mu.Unlock()

	// Send in background to avoid blocking
	go b.sendEvents(events)
}

// sendEvents sends events via transport
func (b *Batcher) sendEvents(events []event.Event) error {
	ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()

	return b.transport.Send(ctx, events)
}
