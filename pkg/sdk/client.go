package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/tinypmf/tinypmf/pkg/event"
	"github.com/tinypmf/tinypmf/pkg/sdk/batch"
	"github.com/tinypmf/tinypmf/pkg/sdk/transport"
)

// ClientConfig holds configuration for the TinyPMF client
type ClientConfig struct {
	APIKey     string        `json:"api_key"`
	Endpoint   string        `json:"endpoint"`
	FlushEvery time.Duration `json:"flush_every"`
}

// Client is the main TinyPMF SDK client
type Client struct {
	config    ClientConfig
	transport transport.Transport
	batcher   *batch.Batcher

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new TinyPMF client
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080/v1/events"
	}
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5 * time.Second
	}

	// Create transport
	trans, err := transport.NewHTTP(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	// Create batcher
	batcher := batch.New(trans, batch.Config{
		MaxBatchSize: 1000,
		FlushEvery:   cfg.FlushEvery,
	})

	return &Client{
		config:    cfg,
		transport: trans,
		batcher:   batcher,
	}, nil
}

// Start starts the client and begins batching events
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return fmt.Errorf("client already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	if err := c.batcher.Start(c.ctx); err != nil {
		return fmt.Errorf("failed to start batcher: %w", err)
	}

	return nil
}

// Stop stops the client and flushes remaining events
func (c *Client) Stop() error {
	if !c.started {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	// Flush remaining events
	if err := c.batcher.Flush(); err != nil {
		return fmt.Errorf("failed to flush events: %w", err)
	}

	c.started = false
	return nil
}

// Track records one activity event for the entity at the current time.
func (c *Client) Track(entityID string) {
	c.TrackAt(entityID, 1, time.Now())
}

// TrackQuantity records a weighted event (revenue, usage minutes, API
// calls) for the entity at the current time.
func (c *Client) TrackQuantity(entityID string, quantity float64) {
	c.TrackAt(entityID, quantity, time.Now())
}

// TrackAt records a weighted event with an explicit timestamp. Useful
// for backfilling historical activity.
func (c *Client) TrackAt(entityID string, quantity float64, at time.Time) {
	if !c.started {
		return
	}

	c.batcher.Add(event.Event{
		EntityID:  entityID,
		Timestamp: at,
		Quantity:  quantity,
	})
}

// Flush forces an immediate send of all pending events.
func (c *Client) Flush() error {
	if !c.started {
		return nil
	}
	return c.batcher.Flush()
}
