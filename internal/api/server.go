// Package api implements the management/dashboard HTTP+WebSocket API:
// read access to cycles/interventions/evaluations, the pending-approval
// queue, system stats, and a live telemetry feed.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/payops/sentinel/internal/approval"
	"github.com/payops/sentinel/internal/auth"
	"github.com/payops/sentinel/internal/config"
	"github.com/payops/sentinel/internal/telemetry"
	"github.com/payops/sentinel/internal/trace"
)

// Server is the management API + dashboard server.
type Server struct {
	config       config.ServerConfig
	store        trace.Store
	cfgLoader    *config.Loader
	approvals    *approval.Queue
	tokenManager *auth.TokenManager
	hub          *telemetry.Hub
	mux          *http.ServeMux
	httpServer   *http.Server
	logger       *slog.Logger
}

// NewServer creates a new management API server.
func NewServer(
	cfg config.ServerConfig,
	store trace.Store,
	cfgLoader *config.Loader,
	approvals *approval.Queue,
	tokenManager *auth.TokenManager,
	hub *telemetry.Hub,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:       cfg,
		store:        store,
		cfgLoader:    cfgLoader,
		approvals:    approvals,
		tokenManager: tokenManager,
		hub:          hub,
		mux:          http.NewServeMux(),
		logger:       logger.With("component", "api.Server"),
	}

	s.registerRoutes()
	return s
}

// authRequired wraps a handler with token-based authentication. If auth is
// disabled in config, the handler is returned unwrapped with no overhead.
func (s *Server) authRequired(action string, next http.HandlerFunc) http.HandlerFunc {
	if !s.config.Auth.Enabled || s.tokenManager == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		secret := strings.TrimPrefix(header, "Bearer ")

		token, err := s.tokenManager.ValidateToken(secret, r.RemoteAddr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if !auth.HasPermission(token.Role, action) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next(w, r)
	}
}

func (s *Server) registerRoutes() {
	// Cycles (the hash-chained reasoning-cycle audit trail)
	s.mux.HandleFunc("GET /api/cycles", s.authRequired("read", s.handleListCycles))
	s.mux.HandleFunc("GET /api/cycles/{id}", s.authRequired("read", s.handleGetCycle))
	s.mux.HandleFunc("GET /api/cycles/latest", s.authRequired("read", s.handleLatestCycle))
	s.mux.HandleFunc("GET /api/cycles/verify", s.authRequired("read", s.handleVerifyChain))

	// Interventions
	s.mux.HandleFunc("GET /api/interventions", s.authRequired("read", s.handleListInterventions))
	s.mux.HandleFunc("GET /api/interventions/{id}", s.authRequired("read", s.handleGetIntervention))
	s.mux.HandleFunc("GET /api/interventions/{id}/evaluation", s.authRequired("read", s.handleGetEvaluation))

	// Approvals
	s.mux.HandleFunc("GET /api/approvals", s.authRequired("read", s.handleListApprovals))
	s.mux.HandleFunc("POST /api/approvals/{id}/approve", s.authRequired("resolve_approval", s.handleApproveAction))
	s.mux.HandleFunc("POST /api/approvals/{id}/deny", s.authRequired("resolve_approval", s.handleDenyAction))

	// Config
	s.mux.HandleFunc("GET /api/config", s.authRequired("read", s.handleGetConfig))
	s.mux.HandleFunc("POST /api/config/reload", s.authRequired("config.change", s.handleReloadConfig))

	// System — health is always public
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.authRequired("read", s.handleStats))

	// WebSocket telemetry feed
	if s.hub != nil {
		s.mux.HandleFunc("GET /api/ws/telemetry", s.hub.HandleWebSocket)
	}
}

// Handler returns the HTTP handler (for embedding in a parent server).
func (s *Server) Handler() http.Handler {
	if s.config.CORS {
		return corsMiddleware(s.mux)
	}
	return s.mux
}

// Start starts the API server and the telemetry hub on the given address.
func (s *Server) Start(addr string) error {
	if s.hub != nil {
		go s.hub.Run()
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("management API listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and the telemetry hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Mux returns the underlying ServeMux for mounting additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Store returns the audit-trail store.
func (s *Server) Store() trace.Store {
	return s.store
}

// APIAddr makes a listen address from a port.
func APIAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
