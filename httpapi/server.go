package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatekit/gatekit"
	"github.com/gatekit/gatekit/broadcast"
)

// Options collects the dependencies of the HTTP layer.
//
// Options instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Options struct {
	Engine      *gatekit.Engine
	Broadcaster *broadcast.Broadcaster
	Logger      *slog.Logger
	Registry    *prometheus.Registry
}

// Server defines a public type used by gatekit APIs.
//
// Server instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Server struct {
	engine      *gatekit.Engine
	broadcaster *broadcast.Broadcaster
	log         *slog.Logger
	metrics     *Metrics
	registry    *prometheus.Registry
	mux         *http.ServeMux
}

// NewServer describes the new server operation and its observable behavior.
// NewServer may return an error when input validation, dependency calls, or security checks fail.
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		engine:      opts.Engine,
		broadcaster: opts.Broadcaster,
		log:         log,
		metrics:     NewMetrics(registry),
		registry:    registry,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the root handler for the whole API surface.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	handle := func(pattern, route string, h http.Handler) {
		s.mux.Handle(pattern, s.instrument(route, h))
	}

	handle("POST /token", "/token", http.HandlerFunc(s.handleToken))
	handle("POST /register", "/register", http.HandlerFunc(s.handleRegister))
	handle("GET /users/me", "/users/me", s.guard(http.HandlerFunc(s.handleGetMe)))
	handle("PUT /users/me", "/users/me", s.guard(http.HandlerFunc(s.handleUpdateMe)))
	handle("POST /verify-email", "/verify-email", http.HandlerFunc(s.handleVerifyEmail))
	handle("POST /request-password-reset", "/request-password-reset", http.HandlerFunc(s.handleRequestPasswordReset))
	handle("POST /reset-password", "/reset-password", http.HandlerFunc(s.handleResetPassword))
	handle("POST /change-password", "/change-password", s.requireVerified(http.HandlerFunc(s.handleChangePassword)))
	handle("GET /protected-resource", "/protected-resource", s.requireVerified(http.HandlerFunc(s.handleProtectedResource)))

	handle("POST /sessions/", "/sessions", s.guard(http.HandlerFunc(s.handleCreateSession)))
	handle("GET /sessions/{id}", "/sessions/{id}", s.guard(http.HandlerFunc(s.handleGetSession)))
	handle("DELETE /sessions/{id}", "/sessions/{id}", s.guard(http.HandlerFunc(s.handleDeleteSession)))

	handle("POST /cache/set", "/cache/set", s.guard(http.HandlerFunc(s.handleCacheSet)))
	handle("GET /cache/get/{key}", "/cache/get/{key}", s.guard(http.HandlerFunc(s.handleCacheGet)))
	handle("DELETE /cache/delete/{key}", "/cache/delete/{key}", s.guard(http.HandlerFunc(s.handleCacheDelete)))

	if s.broadcaster != nil {
		// The websocket route is not instrumented: the hijacked
		// connection outlives the request and would skew latencies.
		s.mux.HandleFunc("GET /ws", s.handleWebSocket)
		handle("POST /broadcast", "/broadcast", s.guard(http.HandlerFunc(s.handleBroadcast)))
	}

	handle("GET /healthz", "/healthz", http.HandlerFunc(s.handleHealthz))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
