// Package httpapi exposes the portal authentication engine over HTTP,
// implementing the endpoint contract the portal frontend depends on.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	portalauth "github.com/msscweb/portal-auth"
	authmw "github.com/msscweb/portal-auth/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// LoginRateLimit caps credential-check requests per client IP per minute.
	LoginRateLimit int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		LoginRateLimit:  30,
	}
}

// Server is the top-level HTTP server for the portal auth service. It owns
// the Chi router and the authentication engine.
type Server struct {
	cfg        Config
	router     chi.Router
	engine     *portalauth.Engine
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, engine *portalauth.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", saltHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- Public auth endpoints ---
	r.Get("/gen-code", s.handleSalt)
	r.Group(func(r chi.Router) {
		if s.cfg.LoginRateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.LoginRateLimit, time.Minute))
		}
		r.Post("/admin-login", s.handleLogin)
	})
	r.Post("/verify-otp", s.handleVerifyOTP)
	r.Post("/verify-token", s.handleVerifyToken)
	r.Post("/update-logout", s.handleLogout)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Post("/update-password-with-otp", s.handleResetPassword)

	// --- Authenticated endpoints ---
	r.Group(func(r chi.Router) {
		r.Use(authmw.Guard(s.engine))

		r.Patch("/update-user", s.handleChangePassword)
		r.Post("/admin-signup", s.handleSignup)
		r.Get("/get-admin-users", s.handleListUsers)
		r.Delete("/delete-user", s.handleDeleteUser)
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or
// SIGTERM is received. It then performs a graceful shutdown, draining
// in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.engine.Close()
	s.logger.Info().Msg("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
