package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/app"
	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/database"
	"github.com/RubachokBoss/major-recommender/internal/mockapi"
	"github.com/RubachokBoss/major-recommender/internal/storage"
	"github.com/RubachokBoss/major-recommender/pkg/logger"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down/force/version)")
	migrateVersion := migrateCmd.Int("version", 0, "version for -direction force")

	if len(os.Args) < 2 {
		app.Usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		runMigrations(*migrateDirection, *migrateVersion)
		return
	case "mock-api":
		runMockAPI()
		return
	case "help", "-h", "--help":
		app.Usage(os.Stdout)
		return
	}

	bootLog := logger.New()
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	runErr := application.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err := application.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close application")
	}

	if runErr != nil {
		if errors.Is(runErr, app.ErrUsage) {
			fmt.Fprintln(os.Stderr, runErr)
			os.Exit(2)
		}
		reportFailure(log, runErr)
		os.Exit(1)
	}
}

// reportFailure prints the user-facing message and logs the details.
func reportFailure(log zerolog.Logger, err error) {
	fmt.Fprintln(os.Stderr, apierror.Normalize(err))
	log.Debug().
		Err(err).
		Str("kind", string(apierror.Classify(err))).
		Msg("Command failed")
}

func runMigrations(direction string, version int) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	dialect, dsn, err := storage.MigrationTarget(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve migration target")
	}

	migrator, err := database.NewMigrator(dialect, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	case "force":
		if err := migrator.Force(version); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Int("version", version).Msg("Migration version forced")
	case "version":
		current, dirty, err := migrator.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migration version")
		}
		log.Info().Uint("version", current).Bool("dirty", dirty).Msg("Migration version")
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up', 'down', 'force' or 'version'")
	}
}

func runMockAPI() {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	srv, err := mockapi.New(cfg.MockServer, cfg.CORS, cfg.Dev.ExposeVerificationCode, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mock API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msgf("Mock API started on %s", cfg.MockServer.Address)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Mock API failed")
	}
	log.Info().Msg("Mock API stopped")
}
