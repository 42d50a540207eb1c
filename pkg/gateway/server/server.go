// Package server wires the HTTP surface: the live websocket endpoint, the
// session REST endpoints, and health.
package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/config"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/handlers"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/mw"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/ratelimit"
)

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	router   chi.Router
	sessions *session.Manager
	limiter  *ratelimit.Registry
	draining atomic.Bool
}

func New(cfg config.Config, logger *slog.Logger, sessions *session.Manager) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		sessions: sessions,
		limiter:  ratelimit.NewRegistry(cfg.LiveCommandsPerSecond, cfg.LiveCommandBurst),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", handlers.HealthHandler{Sessions: s.sessions, Draining: &s.draining}.ServeHTTP)

	s.router.Handle("/v1/live", handlers.LiveHandler{
		Config:   s.cfg,
		Logger:   s.logger,
		Sessions: s.sessions,
	})

	sessionsHandler := handlers.SessionsHandler{Sessions: s.sessions}
	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Use(s.restRateLimit)
		r.Get("/", sessionsHandler.List)
		r.Get("/{id}", sessionsHandler.Get)
		r.Delete("/{id}", sessionsHandler.Delete)
	})
}

// restRateLimit bounds the REST surface per remote address. The websocket
// endpoint carries its own per-connection limiter and is not covered here.
func (s *Server) restRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetDraining flips health checks to 503. Call before Shutdown so load
// balancers pull the instance out of rotation first.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
