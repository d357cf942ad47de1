package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/fieldsync"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/remote"
	"github.com/jonathan/apply-agent/internal/server/middleware"
	"github.com/jonathan/apply-agent/internal/server/ratelimit"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// HealthChecker reports the tailoring service's health.
type HealthChecker interface {
	Health(ctx context.Context) (*remote.HealthResponse, error)
}

// Repository is the persisted state the API reads and appends to.
type Repository interface {
	LoadActiveResume(ctx context.Context) (*types.ActiveResumeSnapshot, error)
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error
	History(ctx context.Context) ([]types.HistoryEntry, error)
}

// PageOpener attaches to an application page. url may be empty to reuse the
// current page. The returned func releases the page.
type PageOpener func(ctx context.Context, url string) (page.Automator, func(), error)

// Deps are the collaborators behind the routes. Nil members disable their routes
// with 503 responses.
type Deps struct {
	Session    *session.Session
	Loop       *tailoring.Loop
	Exporter   *tailoring.Exporter
	Fields     *fieldsync.Syncer
	Repo       Repository
	Service    HealthChecker
	OpenPage   PageOpener
	Autopilot  autopilot.Options
	ResumeText string
}

// Config holds server configuration
type Config struct {
	Addr string
	// Validator enables bearer authentication on every route except /health.
	Validator middleware.TokenValidator
	// RateLimit nil uses ratelimit.DefaultConfig.
	RateLimit *ratelimit.Config
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	deps        Deps
	logger      *zap.Logger
	rateLimiter *ratelimit.Limiter
	handler     http.Handler

	// autopilotMu allows one autopilot run at a time.
	autopilotMu sync.Mutex
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Session == nil {
		deps.Session = session.New()
	}

	s := &Server{
		deps:        deps,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /jd", s.handleSetJD)
	mux.HandleFunc("GET /jd", s.handleGetJD)
	mux.HandleFunc("DELETE /session", s.handleResetSession)

	mux.HandleFunc("POST /tailor", s.handleTailor)
	mux.HandleFunc("POST /review", s.handleReview)
	mux.HandleFunc("GET /resume", s.handleGetResume)
	mux.HandleFunc("GET /resume/download", s.handleDownload)
	mux.HandleFunc("POST /resume/use", s.handleUse)
	mux.HandleFunc("GET /resume/active", s.handleActiveResume)

	mux.HandleFunc("POST /autopilot/stream", s.handleAutopilotStream)

	mux.HandleFunc("GET /fields", s.handleListFields)
	mux.HandleFunc("POST /fields/hydrate", s.handleHydrate)
	mux.HandleFunc("POST /fields/sync", s.handleSync)
	mux.HandleFunc("POST /fields/learn", s.handleLearn)

	mux.HandleFunc("GET /history", s.handleHistory)

	var h http.Handler = mux
	h = middleware.RequireBearer(cfg.Validator, "/health")(h)
	h = s.withRateLimit(h)
	h = middleware.RequestLogger(logger)(h)
	h = withCORS(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     h,
		ReadTimeout: 30 * time.Second,
		// Autopilot streams and tailoring calls run for minutes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID uses the IP address from RemoteAddr.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds() + 0.5)
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.logger.Warn("rate limit exceeded", zap.Int("limit", info.Limit), zap.Time("reset", info.ResetTime))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request error", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}
