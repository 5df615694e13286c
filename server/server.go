// Package server exposes the agent's HTTP surface: scan control, finding
// retrieval, scan metadata, and Prometheus metrics. It is the canonical user
// surface of the agent; the CLI is a thin host around it.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyvet-hq/keyvet/core"
	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/storage"
)

// Server wires the scanner and store behind the HTTP API. Scan starts are
// serialized with a mutex, preserving the storage engine's single-writer
// invariant.
type Server struct {
	scanner *core.Scanner
	store   *storage.Store
	dbPath  string

	scanMu sync.Mutex
}

// New creates a Server.
func New(scanner *core.Scanner, store *storage.Store, dbPath string) *Server {
	return &Server{scanner: scanner, store: store, dbPath: dbPath}
}

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/status", s.handleStatus)
	r.Post("/scan/start", s.handleScanStart)
	r.Get("/findings", s.handleFindings)
	r.Get("/scan/latest", s.handleScanLatest)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// ListenAndServe runs the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"db": s.dbPath,
	})
}

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := time.Now()
	summary, err := s.scanner.RunFullScan(r.Context())
	if err != nil {
		scansFailed.Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	scansTotal.Inc()
	scanDuration.Observe(time.Since(start).Seconds())
	findingsLastScan.Set(float64(summary.FindingsCount))

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	ff, err := s.store.ListAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ff == nil {
		ff = []findings.Finding{}
	}
	writeJSON(w, http.StatusOK, ff)
}

func (s *Server) handleScanLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.LatestScan(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "none"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
