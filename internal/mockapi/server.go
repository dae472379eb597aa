package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/config"
)

type Server struct {
	server *http.Server
	cfg    config.MockServerConfig
	logger zerolog.Logger
	// appRouter holds the routes; chi forbids Use after routes are registered.
	appRouter chi.Router
	// rootRouter carries the middleware chain and mounts appRouter.
	rootRouter *chi.Mux
	mounted    bool
}

// New builds a seeded mock API server ready to Start.
func New(cfg config.MockServerConfig, corsCfg config.CORSConfig, exposeCodes bool, logger zerolog.Logger) (*Server, error) {
	backend := NewBackend()
	if cfg.SeedUsers {
		if err := backend.Seed(); err != nil {
			return nil, fmt.Errorf("failed to seed mock backend: %w", err)
		}
	}

	tokens := NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	h := NewHandler(backend, tokens, exposeCodes, logger)

	srv := NewServer(cfg, h.GetRouter(), logger)
	srv.SetupMiddleware(
		NewCORS(corsCfg),
		RequestLogger(logger),
		Recovery(logger),
	)
	return srv, nil
}

func NewServer(cfg config.MockServerConfig, router chi.Router, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		appRouter:  router,
		rootRouter: chi.NewRouter(),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.rootRouter,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) SetupMiddleware(
	corsMiddleware func(http.Handler) http.Handler,
	loggerMiddleware func(http.Handler) http.Handler,
	recoveryMiddleware func(http.Handler) http.Handler,
) {
	s.rootRouter.Use(middleware.RequestID)
	s.rootRouter.Use(middleware.RealIP)
	s.rootRouter.Use(middleware.StripSlashes)
	s.rootRouter.Use(middleware.CleanPath)
	s.rootRouter.Use(middleware.Compress(5))

	if corsMiddleware != nil {
		s.rootRouter.Use(corsMiddleware)
	}

	if loggerMiddleware != nil {
		s.rootRouter.Use(loggerMiddleware)
	}

	if recoveryMiddleware != nil {
		s.rootRouter.Use(recoveryMiddleware)
	}

	if !s.mounted {
		s.rootRouter.Mount("/", s.appRouter)
		s.mounted = true
	}
}

// Handler returns the full middleware chain, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.rootRouter
}

func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("Starting mock API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is done, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}
	return <-errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down mock API")
	return s.server.Shutdown(ctx)
}
