// Package api serves stored events over a small read-only JSON API.
//
// Routes:
//
//	GET /api/v1/health
//	GET /api/v1/cities
//	GET /api/v1/events?city=&venue=&source=&from=&to=&page=&limit=
//	GET /api/v1/events/{id}
//	GET /api/v1/events/{id}/ics
//	GET /api/v1/venues/{name}/events?city=&page=&limit=
//
// List responses pass through the dedupe middleware, so their count and
// pagination fields always describe the events actually returned.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/dedupe"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/storage"
	"github.com/pfrederiksen/city-events/internal/telemetry"
)

// Server holds the API dependencies
type Server struct {
	cfg   *config.Config
	store storage.Store
	now   func() time.Time
}

// New creates a server reading from store
func New(cfg *config.Config, store storage.Store) *Server {
	return &Server{cfg: cfg, store: store, now: time.Now}
}

// Handler returns the routed handler with request logging applied
func (s *Server) Handler() http.Handler {
	dd := dedupe.Middleware(dedupe.Options{KeyFields: s.cfg.Dedupe.KeyFields})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/cities", s.handleCities)
	mux.Handle("GET /api/v1/events", dd(http.HandlerFunc(s.handleListEvents)))
	mux.HandleFunc("GET /api/v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("GET /api/v1/events/{id}/ics", s.handleEventICS)
	mux.Handle("GET /api/v1/venues/{name}/events", dd(http.HandlerFunc(s.handleVenueEvents)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, http.StatusNotFound, "not found", "no route for "+r.URL.Path, nil)
	})

	return logRequests(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", logger.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests traces and logs every request
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		elapsed := time.Since(start)
		logger.RecordTiming("api.request", elapsed)
		logger.Debug("API request", logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
	})
}
