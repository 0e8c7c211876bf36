package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tinypmf/tinypmf/pkg/analytics"
	"github.com/tinypmf/tinypmf/pkg/export"
	"github.com/tinypmf/tinypmf/pkg/httpx"
	"github.com/tinypmf/tinypmf/pkg/ingest"
	"github.com/tinypmf/tinypmf/pkg/server/monitor"
)

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Fit     monitor.FitHealth   `json:"fit"`
	Dataset analytics.FitStatus `json:"dataset"`
}

// handleHealth returns service health status.
func handleHealth(fitMonitor *monitor.FitMonitor, analyticsHandler *analytics.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fitHealthy := fitMonitor.IsHealthy()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !fitHealthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:  overallStatus,
			Version: "1.0.0",
			Uptime:  time.Since(startTime).String(),
			Fit:     fitMonitor.Status(),
			Dataset: analyticsHandler.Status(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(monitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := monitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		usage := StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  monitor.GetLimit(),
		}

		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	analyticsHandler *analytics.Handler,
	exportHandler *export.Handler,
	storageMonitor *monitor.StorageMonitor,
	fitMonitor *monitor.FitMonitor,
	hub *ingest.EventsHub,
	port string,
) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))

	// API routes
	api := router.PathPrefix("/v1").Subrouter()

	// Event ingestion
	api.HandleFunc("/events", ingestHandler.HandleIngest).Methods("POST")

	// Cohort retention and growth accounting
	api.HandleFunc("/cohorts/matrix", analyticsHandler.HandleCohortMatrix).Methods("GET")
	api.HandleFunc("/cohorts/table", analyticsHandler.HandleCohortTable).Methods("GET")
	api.HandleFunc("/growth", analyticsHandler.HandleGrowth).Methods("GET")

	// Metadata and stats
	api.HandleFunc("/stats", ingestHandler.HandleStats).Methods("GET")
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(fitMonitor, analyticsHandler)).Methods("GET")

	// WebSocket for real-time updates
	api.HandleFunc("/ws", ingestHandler.HandleWebSocket(hub)).Methods("GET")

	// Export/import
	api.HandleFunc("/export", exportHandler.HandleExport).Methods("GET")
	api.HandleFunc("/import", exportHandler.HandleImport).Methods("POST")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Allow localhost origins for local development
			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			// Check if origin is allowed
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			// Only set CORS headers for allowed origins
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
