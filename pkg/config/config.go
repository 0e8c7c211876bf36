package config

import "time"

// Server defaults
const (
	DefaultPort         = "8080"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
)

// Background task intervals
const (
	BadgerGCInterval   = 10 * time.Minute
	RefitCheckInterval = 1 * time.Minute
)

// Analytics timeouts and defaults
const (
	AnalyticsQueryTimeout  = 30 * time.Second
	AnalyticsDefaultWindow = 2 * 365 * 24 * time.Hour
	AnalyticsMaxEvents     = 5_000_000
)

// Ingest timeouts and limits
const (
	IngestTimeout         = 5 * time.Second
	IngestStatsTimeout    = 5 * time.Second
	MaxEventsPerRequest   = 10000
	MaxEntityCardinality  = 1_000_000
	EntityWarnThreshold   = 0.8 // warn at 80% of the cardinality limit
)

// Export defaults and limits
const (
	ExportTimeout     = 60 * time.Second
	MaxImportEvents   = 1_000_000
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
