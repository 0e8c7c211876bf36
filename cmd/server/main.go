package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/tinypmf/tinypmf/pkg/server"
	"github.com/tinypmf/tinypmf/pkg/server/monitor"
)

const (
	serverReadTimeout = 10 * time.Second
	// Exports of large event logs can take a while; write timeout must
	// cover the slowest streamed response.
	serverWriteTimeout = 90 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting TinyPMF Server...")

	// Read configuration from environment variables
	// TINYPMF_MAX_STORAGE_GB: Maximum storage in GB (default: 1 GB)
	// TINYPMF_MAX_MEMORY_MB: Maximum BadgerDB memory in MB (default: 48 MB)
	// TINYPMF_DATA_DIR: Data directory (default: ./data/tinypmf)
	cfg := server.LoadConfig()
	maxStorageBytes := cfg.MaxStorageGB * 1024 * 1024 * 1024

	log.Printf("⚙️  Configuration: Storage limit = %.2f GB, Memory limit = %d MB",
		float64(maxStorageBytes)/(1024*1024*1024), cfg.MaxMemoryMB)
	log.Printf("📁 Data directory: %s", cfg.DataDir)

	// Initialize storage with memory limits
	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Monitors for health and storage usage reporting
	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, maxStorageBytes)
	fitMonitor := &monitor.FitMonitor{}
	log.Printf("💾 Storage limit enforcement enabled: %.2f GB max", float64(maxStorageBytes)/(1024*1024*1024))

	// Create handlers
	ingestHandler, analyticsHandler, exportHandler, hub := server.InitializeHandlers(store, storageMonitor, fitMonitor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// WebSocket hub
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for real-time event streaming")

	// Growth table broadcaster for connected dashboards
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.BroadcastGrowth(ctx, analyticsHandler.Engine(), hub)
	}()
	log.Println("📤 Growth broadcaster started")

	// BadgerDB garbage collection (reclaims disk space)
	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(store, stopGC, &wg)

	// Create router and register routes
	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, analyticsHandler, exportHandler,
		storageMonitor, fitMonitor, hub, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST /v1/events          - Ingest activity events")
		log.Println("   GET  /v1/cohorts/matrix  - Cohort retention matrix")
		log.Println("   GET  /v1/cohorts/table   - Long-format cohort table")
		log.Println("   GET  /v1/growth          - Growth accounting")
		log.Println("   GET  /v1/stats           - Storage statistics")
		log.Println("   GET  /v1/export          - Export events (JSON/CSV)")
		log.Println("   POST /v1/import          - Import events (JSON/CSV)")
		log.Println("✅ Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel context first so background goroutines stop before wg.Wait
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stopGC)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	// Wait for background goroutines to finish
	log.Println("⏳ Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 TinyPMF server exited cleanly")
}
