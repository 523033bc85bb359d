package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/metrics"
	"slidecast/internal/render"
	"slidecast/internal/services"
)

const maxRenderRequestBytes = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/render", srv.handleRender)
	mux.HandleFunc("/api/render/", srv.handleRenderJob)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address once started.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type renderSubmitResponse struct {
	ID string `json:"id"`
}

func (s *apiServer) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var job render.Job
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&job); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid render request: "+err.Error())
		return
	}

	id, err := s.daemon.Submit(&job)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, renderSubmitResponse{ID: id})
}

func (s *apiServer) handleRenderJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/render/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "render job not found")
		return
	}
	record := s.daemon.Job(id)
	if record == nil {
		s.writeError(w, http.StatusNotFound, "render job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload := struct {
		Status
		Recent []JobRecord `json:"recent_jobs"`
	}{
		Status: s.daemon.Status(),
		Recent: s.daemon.Jobs(),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.daemon.Healthy() {
		s.writeError(w, http.StatusServiceUnavailable, "daemon not running")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps the error taxonomy onto HTTP statuses: bad input
// is the client's fault, transient pool trouble asks for a retry, and
// everything else is a server error.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"class": services.Class(err),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
