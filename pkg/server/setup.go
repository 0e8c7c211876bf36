package server

import (
	"log"
	"os"
	"strconv"

	"github.com/tinypmf/tinypmf/pkg/analytics"
	"github.com/tinypmf/tinypmf/pkg/config"
	"github.com/tinypmf/tinypmf/pkg/export"
	"github.com/tinypmf/tinypmf/pkg/ingest"
	"github.com/tinypmf/tinypmf/pkg/server/monitor"
	"github.com/tinypmf/tinypmf/pkg/storage"
	"github.com/tinypmf/tinypmf/pkg/storage/badger"
)

// Config holds server configuration.
type Config struct {
	MaxStorageGB int64
	MaxMemoryMB  int64
	DataDir      string
	Port         string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	maxStorageGB := getEnvInt64("TINYPMF_MAX_STORAGE_GB", config.DefaultMaxStorageGB)
	maxMemoryMB := getEnvInt64("TINYPMF_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)
	port := getPort()

	// Ensure data directory exists
	dataDir := os.Getenv("TINYPMF_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data/tinypmf"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	return Config{
		MaxStorageGB: maxStorageGB,
		MaxMemoryMB:  maxMemoryMB,
		DataDir:      dataDir,
		Port:         port,
	}
}

// InitializeStorage initializes BadgerDB storage with the given configuration.
func InitializeStorage(cfg Config) (storage.Store, error) {
	log.Println("Initializing BadgerDB storage with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return store, nil
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(
	store storage.Store,
	storageMonitor *monitor.StorageMonitor,
	fitMonitor *monitor.FitMonitor,
) (
	*ingest.Handler,
	*analytics.Handler,
	*export.Handler,
	*ingest.EventsHub,
) {
	// Create ingest handler
	ingestHandler := ingest.NewHandler(store)
	ingestHandler.SetStorageChecker(storageMonitor)
	log.Println("Ingest handler created with entity cardinality & storage limit protection")

	// Create analytics handler over a shared engine
	engine := analytics.NewEngine(store)
	engine.SetObserver(fitMonitor)
	analyticsHandler := analytics.NewHandler(engine)
	log.Println("Analytics handler created (cohort retention + growth accounting)")

	// Create export/import handler for backup & restore
	exportHandler := export.NewHandler(store)
	log.Println("Export/Import handler created (JSON & CSV backup support)")

	// Create WebSocket hub for real-time updates
	hub := ingest.NewEventsHub()
	ingestHandler.SetHub(hub)
	log.Println("WebSocket hub created for real-time ingest notifications")

	return ingestHandler, analyticsHandler, exportHandler, hub
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from PORT environment variable or returns default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
