// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: New assembles the dependency chain
// (store → services → handlers), setupRoutes decides which middleware runs
// on which routes, and Start runs the listener with graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config.Config, sqlstore.Store, the rate limit Counter → passed to Server
//	Server.New() creates: TokenService → SessionManager → services → handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ironforge/athlete-api/internal/auth"
	"github.com/ironforge/athlete-api/internal/config"
	"github.com/ironforge/athlete-api/internal/handler"
	"github.com/ironforge/athlete-api/internal/middleware"
	"github.com/ironforge/athlete-api/internal/model"
	"github.com/ironforge/athlete-api/internal/repository"
	"github.com/ironforge/athlete-api/internal/service"
)

const (
	authLimitMessage  = "Too many requests, try again in 15 minutes."
	writeLimitMessage = "Too many write requests, slow down."
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store: Start closes it once the listener has drained.
type Server struct {
	router  *chi.Mux
	cfg     config.Config
	logger  *slog.Logger
	store   repository.Store
	counter middleware.Counter // nil disables rate limiting
	health  *handler.HealthHandler
}

// New wires the services and handlers around store and mounts the routes.
// counter backs both rate limiters; pass nil to run without limiting.
func New(cfg config.Config, store repository.Store, counter middleware.Counter, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		store:   store,
		counter: counter,
		health:  handler.NewHealthHandler(store, logger, cfg.IsProduction()),
	}
	s.setupRoutes(auth.NewSessionManager(tokens, cfg.IsProduction()))
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CheckHealth pings the database once and logs the result. main calls it
// before Start so a dead database is visible in the first log lines.
func (s *Server) CheckHealth(ctx context.Context) handler.DBHealth {
	res := s.health.Check(ctx)
	if res.Healthy {
		s.logger.Info("database reachable", slog.String("driver", s.cfg.DBDriver))
	} else {
		s.logger.Warn("database unreachable at startup",
			slog.String("driver", s.cfg.DBDriver),
			slog.String("error", res.Error),
		)
	}
	return res
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /api/health
//	POST   /api/auth/signup | login | logout
//	GET    /api/auth/me                       (auth)
//	POST   /api/auth/change-password          (auth)
//	GET    /api/auth/github/login | callback  (when configured)
//	GET    /api/athlete/profile               (auth)
//	PUT    /api/athlete/profile | training    (auth)
//	POST   /api/athlete/achievements | stats  (auth)
//	DELETE /api/athlete/achievements/{id}     (auth)
//	GET    /api/athlete/stats/series          (auth)
//	DELETE /api/athlete/stats/{id}            (auth)
//	GET    /*                                 static frontend
//
// Middleware executes in the order it's added. CSRF runs globally, before
// any route, so a forged cookie request never reaches a handler.
func (s *Server) setupRoutes(sessions *auth.SessionManager) {
	production := s.cfg.IsProduction()

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecureHeaders(production))
	s.router.Use(chimiddleware.Compress(5))
	s.router.Use(middleware.CORS(s.cfg.ClientURLs))
	s.router.Use(middleware.LimitBody(middleware.MaxBodyBytes))
	s.router.Use(auth.RequireCSRF(sessions))

	// === Handlers ===
	var github *auth.GitHubProvider
	if s.cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	}
	authService := service.NewAuthService(s.store, auth.NewPasswordService(), s.logger)
	authHandler := handler.NewAuthHandler(authService, sessions, github, s.logger, production)
	athleteHandler := handler.NewAthleteHandler(service.NewAthleteService(s.store, s.logger), s.logger, production)

	authLimit := middleware.NewRateLimit(s.counter, "auth",
		s.cfg.AuthLimit.Limit, s.cfg.AuthLimit.Period, authLimitMessage, s.logger)
	writeLimit := middleware.NewRateLimit(s.counter, "write",
		s.cfg.WriteLimit.Limit, s.cfg.WriteLimit.Period, writeLimitMessage, s.logger)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimit.Handler)
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(sessions))
				r.Get("/me", authHandler.HandleMe)
				r.Post("/change-password", authHandler.HandleChangePassword)
			})

			if authHandler.GitHubEnabled() {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})

		r.Route("/athlete", func(r chi.Router) {
			r.Use(writeLimit.Handler)
			r.Use(auth.RequireAuth(sessions))
			r.Use(auth.RequireRole(model.RoleAthlete, model.RoleCoach))

			r.Get("/profile", athleteHandler.HandleProfile)
			r.Put("/profile", athleteHandler.HandleUpdateProfile)
			r.Put("/training", athleteHandler.HandleUpdateTraining)
			r.Post("/achievements", athleteHandler.HandleAddAchievement)
			r.Delete("/achievements/{id}", athleteHandler.HandleDeleteAchievement)
			r.Post("/stats", athleteHandler.HandleAddStat)
			r.Get("/stats/series", athleteHandler.HandleStatsSeries)
			r.Delete("/stats/{id}", athleteHandler.HandleDeleteStat)
		})

		r.NotFound(handler.NotFound)
	})

	// === Static Frontend ===
	s.router.Handle("/*", newStaticHandler(s.cfg.StaticDir, production))

	if s.counter == nil {
		s.logger.Info("rate limiting disabled")
	}
}

// Start starts the HTTP server and handles graceful shutdown:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("health", fmt.Sprintf("http://localhost:%d/api/health", s.cfg.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
