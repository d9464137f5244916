// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - Which routes need a signed-in user
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ─┬─ sqlite.DB ───────────────┬─ AuthService ──┐
//	               ├─ storage.Store → Intake ──┼─ CatalogService ┼─ handlers → chi routes
//	               └─ TokenService ─ SessionManager ───────────────┘
//
// This is the "composition root" pattern: every dependency is built in New,
// nowhere else.
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

	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/config"
	"github.com/sakif/learning-shelf/internal/handler"
	"github.com/sakif/learning-shelf/internal/middleware"
	sqliteRepo "github.com/sakif/learning-shelf/internal/repository/sqlite"
	"github.com/sakif/learning-shelf/internal/service"
	"github.com/sakif/learning-shelf/internal/storage"
	"github.com/sakif/learning-shelf/internal/storage/local"
	"github.com/sakif/learning-shelf/internal/storage/s3"
	"github.com/sakif/learning-shelf/internal/view"
	"github.com/sakif/learning-shelf/web"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it on shutdown;
// callers that only use Handler (tests) call Close themselves.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds every dependency from cfg and registers the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newStore picks the upload backend named in the config.
func newStore(cfg config.UploadsConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return s3.New(s3.Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,
		})
	case config.BackendLocal, "":
		return local.New(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET       /                         landing page
//	GET/POST  /register, /login         account forms
//	GET       /auth/github/{login,callback}  only when GitHub is configured
//	GET       /logout                   ┐
//	GET/POST  /dashboard                │
//	GET       /playlist/{name}          │ signed-in users only
//	GET       /video/delete/{id}        │ (RequireIdentity → 303 /login)
//	POST      /video/edit/{id}          │
//	GET       /resource/delete/{id}     │
//	POST      /resource/edit/{id}       │
//	GET       /resource/file/{id}       ┘
//	GET       /static/*, /healthz
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
//  1. RequestID: unique ID per request (for tracing)
//  2. RealIP: real client IP from proxy headers
//  3. Heartbeat: answers /healthz before anything else runs
//  4. Logger: logs each request with timing info
//  5. Recoverer: turns panics into 500s (inside Logger, so they get logged)
//  6. MaxBodySize: 413 for bodies over the upload limit
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Heartbeat("/healthz"))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.MaxBodySize(s.config.Uploads.MaxBytes))

	// === Dependencies ===
	store, err := newStore(s.config.Uploads)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.Session.Secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	views, err := view.New(web.Templates())
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	// s.db implements every repository interface; each consumer only sees
	// the one it needs.
	sessions := auth.NewSessionManager(s.db, s.db, tokens, auth.SessionOptions{
		TTL:          s.config.Session.TTL.Duration,
		SecureCookie: s.config.Session.SecureCookie,
	}, s.logger)
	accounts := service.NewAuthService(s.db, auth.NewPasswordService(s.config.Auth.PasswordCost), s.logger)
	catalog := service.NewCatalogService(s.db, s.db, storage.NewIntake(store), s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	}

	pages := handler.NewPages(views, s.logger, github != nil)
	authHandler := handler.NewAuthHandler(pages, accounts, sessions, github, s.logger)
	catalogHandler := handler.NewCatalogHandler(pages, catalog, s.logger)

	s.router.NotFound(pages.NotFound)

	// === Static Files ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))

	// === Public pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(sessions.OptionalIdentity)

		r.Get("/", authHandler.HandleHome)
		r.Get("/register", authHandler.HandleRegisterPage)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/login", authHandler.HandleLoginPage)
		r.Post("/login", authHandler.HandleLogin)

		if github != nil {
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === Signed-in pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(sessions.RequireIdentity)

		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/dashboard", catalogHandler.HandleDashboard)
		r.Post("/dashboard", catalogHandler.HandleDashboardPost)
		r.Get("/playlist/{name}", catalogHandler.HandlePlaylist)
		r.Get("/video/delete/{id}", catalogHandler.HandleDeleteVideo)
		r.Post("/video/edit/{id}", catalogHandler.HandleEditVideo)
		r.Get("/resource/delete/{id}", catalogHandler.HandleDeleteResource)
		r.Post("/resource/edit/{id}", catalogHandler.HandleEditResource)
		r.Get("/resource/file/{id}", catalogHandler.HandleResourceFile)
	})

	s.logger.Info("routes ready",
		slog.String("uploads", s.config.Uploads.Backend),
		slog.Bool("github", github != nil),
	)
	return nil
}

// Handler returns the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second, // 40 MiB uploads on slow links
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Path),
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
