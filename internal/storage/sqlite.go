package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// NewSQLiteStore opens the sqlite file at path. The kv_entries table must
// already exist (see the migrate command or storage.auto_migrate).
func NewSQLiteStore(path, namespace string, logger zerolog.Logger) (Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Writers serialise on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Opened sqlite storage")
	return newSQLStore(db, sq.Question, namespace, logger), nil
}
