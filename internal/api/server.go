// Package api exposes the HTTP interface of a running scrape: health probes,
// Prometheus metrics, and a live run status snapshot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// Server wires the HTTP handlers for one scrape process.
type Server struct {
	router chi.Router
	status *StatusSink
	logger *zap.Logger
	srv    *http.Server
}

// NewServer constructs a Server listening on port.
func NewServer(port int, status *StatusSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{status: status, logger: logger}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(logger))
	r.Get("/healthz", s.healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v1/status", s.runStatus)
	s.router = r

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in the background until Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server started", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) runStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no run in progress"})
		return
	}
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic", zap.Any("panic", rec))
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RunStatus is the live snapshot served at /v1/status.
type RunStatus struct {
	RunID         string         `json:"run_id,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	LastEventAt   *time.Time     `json:"last_event_at,omitempty"`
	LastStage     progress.Stage `json:"last_stage,omitempty"`
	CurrentAuthor string         `json:"current_author,omitempty"`
	Fetched       int            `json:"fetched"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	Checkpoints   int            `json:"checkpoints"`
	CaptchaPaused bool           `json:"captcha_paused"`
	Done          bool           `json:"done"`
}
