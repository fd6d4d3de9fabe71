package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/ledger"
	"github.com/dokzlo13/plantboxd/internal/loop"
	"github.com/dokzlo13/plantboxd/internal/metrics"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

// SnapshotSource exposes the latest loop state
type SnapshotSource interface {
	Snapshot() *loop.Snapshot
	Ready() bool
}

// EventSource lists recent ledger entries
type EventSource interface {
	Recent(eventType string, limit int) ([]*ledger.Entry, error)
}

// StatusService serves health, status, recent events and metrics over HTTP.
type StatusService struct {
	cfg     *config.Config
	loop    SnapshotSource
	events  EventSource
	metrics *metrics.Metrics
	server  *http.Server
}

// NewStatusService creates a new StatusService.
func NewStatusService(cfg *config.Config, loop SnapshotSource, events EventSource, m *metrics.Metrics) *StatusService {
	return &StatusService{
		cfg:     cfg,
		loop:    loop,
		events:  events,
		metrics: m,
	}
}

// Start begins the status server if enabled.
func (s *StatusService) Start(ctx context.Context) {
	if !s.cfg.Status.Enabled {
		return
	}

	go s.run(ctx)
}

// Handler returns the routed, logged and panic-safe handler
func (s *StatusService) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.LoggingHandler(accessLog{}, r),
	)
}

func (s *StatusService) run(ctx context.Context) {
	addr := s.cfg.Status.Addr()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting status server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Status server error")
	}
}

func (s *StatusService) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *StatusService) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.loop.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *StatusService) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.loop.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "control loop has not run yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *StatusService) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventsLimit)
	}

	entries, err := s.events.Recent(r.URL.Query().Get("type"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger unavailable"})
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// accessLog routes gorilla access lines to zerolog at debug level
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	log.Debug().Str("component", "status").Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
