// Package api exposes the HTTP interface the chat relay calls into.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/commands"
	"github.com/mbazhenov/scoutbot/internal/paginate"
	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config controls the HTTP surface.
type Config struct {
	// RequestTimeout bounds each request. Zero defaults to 60s.
	RequestTimeout time.Duration
	// APIKey, when set, is required in the X-API-Key header.
	APIKey string
}

// Server wires HTTP handlers to the command service and the paginator.
type Server struct {
	router   chi.Router
	svc      *commands.Service
	arena    *paginate.Arena
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. registry may be
// nil, which serves the default Prometheus registry.
func NewServer(
	svc *commands.Service,
	arena *paginate.Arena,
	registry *prometheus.Registry,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		svc:      svc,
		arena:    arena,
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Post("/commands", s.runCommand)
		r.Post("/pages/{message_id}", s.navigatePage)
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

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metricsHandler() http.Handler {
	if s.registry != nil {
		return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

type commandRequest struct {
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
	Requester scout.Requester   `json:"requester"`
}

type commandResponse struct {
	Text           string       `json:"text"`
	JobID          string       `json:"job_id,omitempty"`
	MessageID      string       `json:"message_id,omitempty"`
	Page           *pagePayload `json:"page,omitempty"`
	AttachmentURIs []string     `json:"attachment_uris,omitempty"`
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Requester.ID == "" {
		writeError(w, http.StatusBadRequest, "requester.id is required")
		return
	}
	resp, err := s.svc.Handle(r.Context(), commands.Request{
		Command:   req.Command,
		Args:      req.Args,
		Options:   req.Options,
		Requester: req.Requester,
	})
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	out := commandResponse{
		Text:           resp.Text,
		JobID:          resp.JobID,
		MessageID:      resp.MessageID,
		AttachmentURIs: resp.AttachmentURIs,
	}
	if resp.Page != nil {
		p := toPagePayload(*resp.Page)
		out.Page = &p
	}
	writeJSON(w, http.StatusOK, out)
}

type pageRequest struct {
	// Action is one of first, prev, next, last or jump.
	Action string `json:"action"`
	// Index is the zero-based target page for jump.
	Index int `json:"index"`
}

type pagePayload struct {
	Index   int                  `json:"index"`
	Total   int                  `json:"total"`
	HasPrev bool                 `json:"has_prev"`
	HasNext bool                 `json:"has_next"`
	Entries []scout.FoundAccount `json:"entries"`
}

func toPagePayload(p paginate.Page) pagePayload {
	return pagePayload{
		Index:   p.Index,
		Total:   p.Total,
		HasPrev: p.HasPrev(),
		HasNext: p.HasNext(),
		Entries: p.Entries,
	}
}

func (s *Server) navigatePage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "message_id")

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var (
		page paginate.Page
		ok   bool
	)
	switch req.Action {
	case "first":
		page, ok = s.arena.First(messageID)
	case "prev":
		page, ok = s.arena.Prev(messageID)
	case "next":
		page, ok = s.arena.Next(messageID)
	case "last":
		page, ok = s.arena.Last(messageID)
	case "jump":
		page, ok = s.arena.Jump(messageID, req.Index)
	case "", "current":
		page, ok = s.arena.Current(messageID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "pagination session expired or unknown")
		return
	}
	writeJSON(w, http.StatusOK, toPagePayload(page))
}

// writeCommandError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	var (
		invalid  *scout.InvalidParameterError
		conflict *scout.AlreadyRunningError
		scanFail *scout.ScanFailureError
	)
	switch {
	case errors.Is(err, scout.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &scanFail):
		// Detail stays in the debug log; the wire sees the generic message.
		writeError(w, http.StatusBadGateway, scanFail.Error())
	default:
		s.logger.Error("command failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
