package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"poiatlas/pkg/version"
)

// NewServer creates and configures the HTTP server.
// gallery may be nil when no Wikipedia source is configured.
func NewServer(addr string, pois *POIHandler, gallery *GalleryHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health & Version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Stats & Logs
	mux.Handle("GET /api/stats", stats)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 3. POI Endpoints
	mux.HandleFunc("POST /api/pois/{id}/open", pois.HandleOpen)
	mux.HandleFunc("GET /api/pois/{id}/info", pois.HandleInfo)
	mux.HandleFunc("DELETE /api/pois/{id}/cache", pois.HandleEvict)
	mux.HandleFunc("GET /api/pois/visible", pois.HandleVisible)
	mux.HandleFunc("GET /api/pois/updates", pois.HandleUpdates)

	// 4. District Gallery
	if gallery != nil {
		mux.HandleFunc("GET /api/districts/{title}/gallery", gallery.Handle)
	}

	// 5. Shutdown Endpoint
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// Enrichment of an uncached POI can take a while; the write timeout covers it.
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
