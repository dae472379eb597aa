package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
)

const kvTable = "kv_entries"

// sqlStore keeps entries in the kv_entries table created by the embedded
// migrations. It serves both sqlite and postgres.
type sqlStore struct {
	db        *sql.DB
	builder   sq.StatementBuilderType
	namespace string
	logger    zerolog.Logger
}

func newSQLStore(db *sql.DB, placeholder sq.PlaceholderFormat, namespace string, logger zerolog.Logger) *sqlStore {
	return &sqlStore{
		db:        db,
		builder:   sq.StatementBuilder.PlaceholderFormat(placeholder),
		namespace: namespace,
		logger:    logger,
	}
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.builder.
		Select("value").
		From(kvTable).
		Where(sq.Eq{"namespace": s.namespace, "entry_key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key, value string) error {
	query, args, err := s.builder.
		Insert(kvTable).
		Columns("namespace", "entry_key", "value", "updated_at").
		Values(s.namespace, key, value, time.Now().UTC()).
		Suffix("ON CONFLICT (namespace, entry_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("Entry stored")
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := s.builder.
		Delete(kvTable).
		Where(sq.Eq{"namespace": s.namespace, "entry_key": keys}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
