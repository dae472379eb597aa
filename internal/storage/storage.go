package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/database"
	"github.com/rs/zerolog"
)

// Store is an opaque string key-value store. Values are written and read
// whole; there is no eviction or indexing.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMinIO    = "minio"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Store, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}
	log := logger.With().Str("storage", cfg.Driver).Str("namespace", namespace).Logger()

	switch strings.ToLower(cfg.Driver) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.File.Path, namespace, log)
	case DriverSQLite:
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := migrate(database.DialectSQLite, cfg.SQLite.Path); err != nil {
				return nil, err
			}
		}
		return NewSQLiteStore(cfg.SQLite.Path, namespace, log)
	case DriverPostgres:
		if cfg.AutoMigrate {
			if err := migrate(database.DialectPostgres, cfg.Database.DSN()); err != nil {
				return nil, err
			}
		}
		return NewPostgresStore(ctx, cfg.Database, namespace, log)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.Redis, namespace, log)
	case DriverMinIO:
		return NewMinIOStore(ctx, cfg.MinIO, namespace, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func migrate(dialect, dsn string) error {
	m, err := database.NewMigrator(dialect, dsn)
	if err != nil {
		return err
	}
	return m.Up()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// MigrationTarget returns the migration dialect and DSN of a SQL-backed
// driver.
func MigrationTarget(cfg config.StorageConfig) (string, string, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return "", "", err
		}
		return database.DialectSQLite, cfg.SQLite.Path, nil
	case DriverPostgres:
		return database.DialectPostgres, cfg.Database.DSN(), nil
	default:
		return "", "", fmt.Errorf("storage driver %q has no schema to migrate", cfg.Driver)
	}
}
