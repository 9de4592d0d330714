// Package server exposes the skillgate service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pario-ai/skillgate/pkg/api"
	"github.com/pario-ai/skillgate/pkg/config"
)

const maxBodyBytes = 1 << 20

// Server is the skillgate HTTP front end.
type Server struct {
	cfg     *config.Config
	svc     *api.Service
	logger  *zap.Logger
	limiter *rate.Limiter
	mux     *http.ServeMux
}

// New creates a Server wired to svc. Metrics are served from gatherer when it
// is non-nil. A zero rate limit disables limiting.
func New(cfg *config.Config, svc *api.Service, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(1, cfg.Server.Burst))
	}

	s.mux.HandleFunc("POST /v1/query", s.handleQuery)
	s.mux.HandleFunc("POST /v1/query/batch", s.handleBatch)
	s.mux.HandleFunc("GET /v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /v1/skills", s.handleListSkills)
	s.mux.HandleFunc("GET /v1/skills/{id}", s.handleGetSkill)
	s.mux.HandleFunc("GET /v1/patterns/{id}", s.handleGetPattern)
	s.mux.HandleFunc("POST /v1/patterns", s.handleAddPattern)
	s.mux.HandleFunc("POST /v1/tools/validate", s.handleValidateTool)
	s.mux.HandleFunc("POST /v1/tools/call", s.handleCallTool)
	s.mux.HandleFunc("POST /v1/context/{chain}", s.handleAddContext)
	s.mux.HandleFunc("GET /v1/context/{chain}", s.handleGetContext)
	s.mux.HandleFunc("DELETE /v1/cache", s.handleClearCache)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler. Every request is rate limited and
// bounded by the orchestrator timeout.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if t := s.cfg.Orchestrator.Timeout; t > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), t)
		defer cancel()
		r = r.WithContext(ctx)
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)))
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("skillgate listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"skillgate_error","code":%d}}`, message, code)
}

// internalError logs err and reports a generic failure.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSONError(w, http.StatusGatewayTimeout, "request timed out")
		return
	}
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}
