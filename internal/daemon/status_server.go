package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// StatusResponse is the JSON body of GET /status.
type StatusResponse struct {
	PID                int       `json:"pid"`
	StartedAt          time.Time `json:"started_at"`
	Version            string    `json:"version,omitempty"`
	StoreBackend       string    `json:"store_backend"`
	State              string    `json:"state"`
	TrackingActive     bool      `json:"tracking_active"`
	CurrentAppID       string    `json:"current_app,omitempty"`
	LastAppliedProfile string    `json:"last_applied_profile"`
	SessionID          string    `json:"session_id,omitempty"`
	WritePending       bool      `json:"write_pending"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StatusServer exposes liveness, the controller snapshot and metrics over
// local HTTP.
type StatusServer struct {
	snapshot func() domain.ControllerSnapshot
	daemon   domain.Daemon
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewStatusServer creates a status server. snapshot is called per request.
func NewStatusServer(snapshot func() domain.ControllerSnapshot, daemon domain.Daemon, gatherer prometheus.Gatherer, logger *zap.Logger) *StatusServer {
	return &StatusServer{
		snapshot: snapshot,
		daemon:   daemon,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *StatusServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		PID:                s.daemon.PID,
		StartedAt:          s.daemon.StartedAt,
		Version:            s.daemon.AppVersion,
		StoreBackend:       s.daemon.StoreBackend,
		State:              string(snap.State),
		TrackingActive:     snap.TrackingActive,
		CurrentAppID:       snap.Foreground.CurrentAppID,
		LastAppliedProfile: string(snap.Foreground.LastAppliedProfile),
		SessionID:          snap.SessionID,
		WritePending:       snap.WritePending,
		UpdatedAt:          snap.UpdatedAt,
	})
}

// Serve listens on addr until ctx is done.
func (s *StatusServer) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *StatusServer) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
