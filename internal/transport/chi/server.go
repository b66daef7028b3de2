// Package chi exposes the chat engine over HTTP: the visitor-facing chat
// endpoints, the progress poller, and the admin surface for usage and
// index management.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	logpkg "github.com/kailas-cloud/asksite/internal/logger"
	"github.com/kailas-cloud/asksite/internal/metrics"
	"github.com/kailas-cloud/asksite/internal/repository/progress"
	"github.com/kailas-cloud/asksite/internal/repository/usagelog"
	chatuc "github.com/kailas-cloud/asksite/internal/usecase/chat"
)

// usageLogDefaultLimit bounds the usage log page when the caller does not
// ask for a specific size.
const usageLogDefaultLimit = 100

// chatService is the slice of the chat usecase the transport consumes.
type chatService interface {
	Chat(ctx context.Context, payload chatuc.Payload) (chatuc.Response, error)
	ChatStream(ctx context.Context, payload chatuc.Payload, emitter chatuc.Emitter) error
	MaxPayloadBytes() int
}

// progressReader serves the polling endpoint.
type progressReader interface {
	Get(ctx context.Context, id string) (progress.State, error)
}

// usageReader serves the admin usage log.
type usageReader interface {
	Recent(ctx context.Context, n int) ([]usagelog.Entry, error)
}

// indexManager serves the admin index routes.
type indexManager interface {
	Index(ctx context.Context, force bool) (domain.IndexSnapshot, error)
	Invalidate(ctx context.Context) error
}

// pinger reports backing-store health.
type pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	chat          chatService
	progress      progressReader
	usage         usageReader
	index         indexManager
	db            pinger
	limiter       limiter
	siteBaseURL   string
	adminKeys     []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat chatService,
	prog progressReader,
	usage usageReader,
	index indexManager,
	db pinger,
	lim limiter,
	siteBaseURL string,
	adminKeys []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:        chat,
		progress:    prog,
		usage:       usage,
		index:       index,
		db:          db,
		limiter:     lim,
		siteBaseURL: siteBaseURL,
		adminKeys:   adminKeys,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, codePayloadTooLarge),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrOriginBlocked, http.StatusForbidden, codeOriginBlocked),
		sentinelHandler(domain.ErrPageNotFound, http.StatusNotFound, codeNotFound),
	}
	return s
}

// Router assembles the route tree with its middleware stack.
func (s *Server) Router() http.Handler {
	r := chirouter.NewRouter()

	r.Use(s.jsonRecoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Group(func(r chirouter.Router) {
			r.Use(s.originMiddleware)
			r.Use(s.rateLimitMiddleware)
			r.Post("/chat", s.handleChat)
			r.Post("/chat/stream", s.handleChatStream)
			r.Get("/chat/progress", s.handleProgress)
		})

		r.Group(func(r chirouter.Router) {
			r.Use(BearerAuthMiddleware(s.adminKeys))
			r.Get("/usage/log", s.handleUsageLog)
			r.Post("/index/rebuild", s.handleIndexRebuild)
			r.Post("/index/invalidate", s.handleIndexInvalidate)
		})
	})

	return r
}

// handleChat handles POST /api/v1/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodePayload(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.chat.Chat(r.Context(), payload)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if resp.Sources == nil {
		resp.Sources = []domain.Source{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProgress handles GET /api/v1/chat/progress. It is polled by clients
// whose proxies buffer the SSE stream.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chatuc.SanitizeStreamID(r.URL.Query().Get("stream_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "stream_id is required")
		return
	}

	state, err := s.progress.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, state)
}

// handleUsageLog handles GET /api/v1/usage/log.
func (s *Server) handleUsageLog(w http.ResponseWriter, r *http.Request) {
	limit := usageLogDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.usage.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

// handleIndexRebuild handles POST /api/v1/index/rebuild. The rebuild runs
// with the forced fetch budget.
func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	snap, err := s.index.Index(r.Context(), true)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("manual", "error").Inc()
		s.handleDomainError(w, r, err)
		return
	}
	metrics.IndexRebuildsTotal.WithLabelValues("manual", "success").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": len(snap.Documents),
		"built_at":  snap.BuiltAt,
	})
}

// handleIndexInvalidate handles POST /api/v1/index/invalidate.
func (s *Server) handleIndexInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Invalidate(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"redis": "ok"}
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.db.Ping(ctx); err != nil {
		checks["redis"] = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// decodePayload reads and decodes the chat payload under the byte cap.
func (s *Server) decodePayload(w http.ResponseWriter, r *http.Request) (chatuc.Payload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.chat.MaxPayloadBytes()))

	var payload chatuc.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return chatuc.Payload{}, fmt.Errorf("request body exceeds %d bytes: %w",
				maxErr.Limit, domain.ErrPayloadTooLarge)
		}
		return chatuc.Payload{}, fmt.Errorf("invalid request body: %w", domain.ErrValidation)
	}
	return payload, nil
}

// jsonRecoverer converts panics into JSON 500s instead of chi's plain-text
// default.
func (s *Server) jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison per net/http contract
					panic(rec)
				}
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codePayloadTooLarge  = "payload_too_large"
	codeRateLimited      = "rate_limited"
	codeOriginBlocked    = "origin_blocked"
	codeNotFound         = "not_found"
	codeUnauthorized     = "unauthorized"
	codeInternalError    = "internal_error"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns the error message a client may see. Validation
// and payload-size errors carry user-facing detail by construction, so their
// full message passes through; everything else surfaces only sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrPayloadTooLarge) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrRateLimited,
		domain.ErrOriginBlocked,
		domain.ErrPageNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
