// Package api exposes the HTTP interface: scrape and ETL triggers, status
// reads, health, and metrics. Handlers are thin; all work happens behind
// the job guards.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/bookdata-api/jobs"
	"github.com/aluiziolira/bookdata-api/scraper"
)

// Server wires HTTP handlers to the injected job guards.
type Server struct {
	router chi.Router

	scrapeGuard *jobs.Guard
	etlGuard    *jobs.Guard
	runScrape   jobs.RunFunc
	runETL      jobs.RunFunc
}

// NewServer constructs a Server with middleware and routes. The guards own
// single-flight semantics; the run funcs do the actual work.
func NewServer(scrapeGuard, etlGuard *jobs.Guard, runScrape, runETL jobs.RunFunc, metrics *scraper.Metrics) *Server {
	s := &Server{
		scrapeGuard: scrapeGuard,
		etlGuard:    etlGuard,
		runScrape:   runScrape,
		runETL:      runETL,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", s.healthz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrapper", s.triggerScrape)
		r.Get("/scrapper/status", s.scrapeStatus)
		r.Post("/data-process", s.triggerETL)
		r.Get("/data-process/status", s.etlStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) triggerScrape(w http.ResponseWriter, _ *http.Request) {
	if !s.scrapeGuard.Trigger(s.runScrape) {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Scrapper is already running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Scrapper started in background"})
}

func (s *Server) scrapeStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scrapeGuard.Status())
}

func (s *Server) triggerETL(w http.ResponseWriter, _ *http.Request) {
	if !s.etlGuard.Trigger(s.runETL) {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Data processing is already running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Data processing started in background"})
}

func (s *Server) etlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.etlGuard.Status())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		slog.Info("request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", slog.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write json failed", slog.Any("error", err))
	}
}
