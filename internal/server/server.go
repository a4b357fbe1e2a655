// Package server provides the HTTP REST API for the hiring workflow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/hiring-workflow/internal/notify"
	"github.com/jonathan/hiring-workflow/internal/server/middleware"
	"github.com/jonathan/hiring-workflow/internal/server/ratelimit"
	"github.com/jonathan/hiring-workflow/internal/templates"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the components the API is built on.
type Deps struct {
	Workflow  *workflow.Service
	Directory workflow.Directory
	Inbox     *notify.Inbox
	Templates *templates.Catalog
	JWT       *JWTService
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	httpServer  *http.Server
	workflow    *workflow.Service
	directory   workflow.Directory
	inbox       *notify.Inbox
	templates   *templates.Catalog
	jwtService  *JWTService
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
}

// New creates a server. A nil Limiter disables throttling.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Workflow == nil || deps.Directory == nil || deps.Inbox == nil || deps.JWT == nil {
		return nil, errors.New("server requires workflow, directory, inbox and JWT dependencies")
	}
	if deps.Templates == nil {
		catalog, err := templates.Builtin()
		if err != nil {
			return nil, fmt.Errorf("failed to load feedback templates: %w", err)
		}
		deps.Templates = catalog
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		workflow:    deps.Workflow,
		directory:   deps.Directory,
		inbox:       deps.Inbox,
		templates:   deps.Templates,
		jwtService:  deps.JWT,
		rateLimiter: deps.Limiter,
		logger:      deps.Logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	load := middleware.LoadUser(s.directory.GetUser, s.logger)
	handle := func(pattern string, h actorHandler) {
		mux.Handle(pattern, auth(load(h)))
	}

	// Applications
	handle("GET /applications/{id}", s.handleGetApplication)
	handle("GET /applications/{id}/stages", s.handleStageOverview)
	handle("POST /applications/{id}/advance", s.handleAdvance)

	// Assignments
	handle("POST /applications/{id}/stages/{stage}/assign", s.handleAssignStage)
	handle("POST /applications/{id}/stages/{stage}/reassign", s.handleReassignStage)
	handle("POST /applications/{id}/stages/bulk-assign", s.handleBulkAssign)
	handle("GET /applications/{id}/assignments", s.handleListStageAssignments)
	handle("GET /assignments/mine", s.handleMyAssignments)
	handle("GET /assignees", s.handleAssignees)

	// Feedback and stage progression
	handle("POST /applications/{id}/stages/{stage}/feedback", s.handleSubmitFeedback)
	handle("PUT /applications/{id}/stages/{stage}/feedback", s.handleSubmitFeedback)
	handle("GET /applications/{id}/stages/{stage}/feedback", s.handleGetFeedback)
	handle("POST /applications/{id}/stages/{stage}/start", s.handleStartStage)
	handle("PUT /applications/{id}/stages/{stage}/status", s.handleUpdateStageStatus)
	handle("POST /applications/{id}/stages/{stage}/forward", s.handleForwardToHR)
	handle("POST /applications/{id}/stages/{stage}/approve", s.handleApprove)
	handle("POST /applications/{id}/stages/{stage}/reject", s.handleReject)
	handle("GET /feedback/statistics", s.handleStatistics)
	handle("GET /feedback/templates", s.handleTemplates)

	// Notifications
	handle("GET /notifications", s.handleListNotifications)
	handle("GET /notifications/unread-count", s.handleUnreadCount)
	handle("PUT /notifications/{id}/read", s.handleMarkRead)
	handle("PUT /notifications/read-all", s.handleMarkAllRead)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.rateLimiter != nil {
		defer s.rateLimiter.Stop()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// actorHandler is a handler that runs with the authenticated caller.
type actorHandler func(w http.ResponseWriter, r *http.Request, actor *types.User)

func (h actorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUser(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}
	h(w, r, actor)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

// withRateLimit rejects clients over their request budget with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := extractClientID(r)
		allowed, info := s.rateLimiter.Allow(r.Context(), clientID, r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.logger.Warn("rate limit exceeded",
				slog.String("client", clientID),
				slog.String("path", r.URL.Path),
				slog.Int("limit", info.Limit))
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID uses the remote IP. Forwarded headers are not trusted.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate limit exceeded",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.UTC().Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int((info.RetryAfter + time.Second - 1) / time.Second)
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
