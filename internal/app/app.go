package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/events"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
	"github.com/RubachokBoss/major-recommender/internal/storage"
)

// App owns the stores of one client process and the resources behind them.
type App struct {
	Auth          service.AuthService
	Announcements service.AnnouncementService
	Results       service.ResultService

	logger    zerolog.Logger
	config    *config.Config
	store     storage.Store
	publisher events.Publisher
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	publisher, err := events.New(cfg.Events, log)
	if err != nil {
		// Events are optional; the client keeps working without a broker.
		log.Error().Err(err).Msg("Failed to connect event publisher, continuing without events")
		publisher = events.NewNoopPublisher()
	}

	apiClient := integration.NewAPIClient(cfg.API, log)

	sessionRepo := repository.NewSessionRepository(store, log)
	announcementRepo := repository.NewAnnouncementRepository(store, log)

	authService := service.NewAuthService(
		apiClient,
		sessionRepo,
		events.NewSessionInvalidator(publisher),
		service.AuthOptions{ExposeDevVerificationCode: cfg.Dev.ExposeVerificationCode},
		log,
	)
	announcementService := service.NewAnnouncementService(
		apiClient,
		announcementRepo,
		sessionRepo,
		publisher,
		nil,
		log,
	)
	resultService := service.NewResultService(apiClient, sessionRepo, log)

	return &App{
		Auth:          authService,
		Announcements: announcementService,
		Results:       resultService,
		logger:        log,
		config:        cfg,
		store:         store,
		publisher:     publisher,
	}, nil
}

// Start rehydrates every persisted store.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Auth.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	if _, err := a.Announcements.Hydrate(ctx); err != nil {
		return fmt.Errorf("failed to load announcements: %w", err)
	}
	return nil
}

// Close waits for background invalidations, then releases the publisher
// and the store.
func (a *App) Close() error {
	a.Auth.Wait()

	var errs []error
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}
