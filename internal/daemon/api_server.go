package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/api"
	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	jobs   *api.JobService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		jobs:   d.jobs,
	}
	return srv, nil
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/jobs", s.handleStartJob)
	mux.HandleFunc("DELETE /api/jobs", s.handleClearCompleted)
	mux.HandleFunc("POST /api/jobs/retry", s.handleRetryAll)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /api/jobs/{id}/result", s.handleGetResult)
	mux.HandleFunc("POST /api/jobs/{id}/retry", s.handleRetryJob)
	mux.HandleFunc("POST /api/jobs/{id}/rerun", s.handleRerunJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	return s.withRequestID(authMiddleware(s.token, mux.ServeHTTP))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// address reports the bound listener address, or the configured bind when the
// server is not listening.
func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		APIBind:      status.APIAddress,
		InboxDir:     status.InboxDir,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "list jobs", fmt.Sprintf("unknown status %q", trimmed), nil))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.jobs.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []api.Job{}
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req api.StartRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.jobs.StartJob(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("job enqueued via api",
		logging.String(logging.FieldJobID, id),
		logging.String("source", req.Source),
	)
	s.writeJSON(w, http.StatusCreated, api.StartResponse{ID: id})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status, err := s.jobs.GetStatus(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobDetailResponse{Job: *job, Status: status})
}

func (s *apiServer) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(result.Items) == 1 && result.Items[0].Outcome == api.RetryJobNotFound {
		s.writeError(w, fmt.Errorf("%w %q", api.ErrJobNotFound, r.PathValue("id")))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	updated, err := s.jobs.RetryAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryJobsResult{UpdatedCount: updated, Items: []api.RetryJobResult{}})
}

func (s *apiServer) handleRerunJob(w http.ResponseWriter, r *http.Request) {
	var req api.RerunRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	id, err := s.jobs.Rerun(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.StartResponse{ID: id})
}

func (s *apiServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if result.Outcome == api.CancelJobNotFound {
		s.writeError(w, fmt.Errorf("%w %q", api.ErrJobNotFound, r.PathValue("id")))
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := s.jobs.ClearCompleted(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "decode request", "invalid JSON body", err))
		return false
	}
	return true
}

// withRequestID tags each request with a correlation id that flows into
// logs and the X-Request-ID response header.
func (s *apiServer) withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status, body := api.ErrorFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", logging.Error(err))
	}
	s.writeJSON(w, status, body)
}
