package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/storage"
)

// Persisted keys.
const (
	KeyToken         = "token"
	KeyRefreshToken  = "refreshToken"
	KeyAuthState     = "authState"
	KeyAnnouncements = "announcements"
)

type SessionRepository interface {
	// Load returns the stored session, or the default session when it is
	// missing, unreadable or inconsistent.
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, session models.Session) error
	AccessToken(ctx context.Context) (string, bool, error)
	RefreshToken(ctx context.Context) (string, bool, error)
	// SaveTokens stores the tokens of a new session. An empty refresh token
	// removes the stored one.
	SaveTokens(ctx context.Context, access, refresh string) error
	// SaveRefreshedTokens stores a renewed access token and keeps the stored
	// refresh token unless a rotated one is given.
	SaveRefreshedTokens(ctx context.Context, access, refresh string) error
	// Clear removes the session and both tokens.
	Clear(ctx context.Context) error
}

type sessionRepository struct {
	store  storage.Store
	logger zerolog.Logger
}

func NewSessionRepository(store storage.Store, logger zerolog.Logger) SessionRepository {
	return &sessionRepository{store: store, logger: logger}
}

func (r *sessionRepository) Load(ctx context.Context) (models.Session, error) {
	var session models.Session
	found, err := loadJSON(ctx, r.store, KeyAuthState, &session, r.logger)
	if err != nil {
		return models.DefaultSession(), err
	}
	if !found {
		return models.DefaultSession(), nil
	}
	if !session.Consistent() {
		r.logger.Warn().Msg("Stored session is inconsistent, using defaults")
		return models.DefaultSession(), nil
	}
	return session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session models.Session) error {
	return saveJSON(ctx, r.store, KeyAuthState, session)
}

func (r *sessionRepository) AccessToken(ctx context.Context) (string, bool, error) {
	return r.token(ctx, KeyToken)
}

func (r *sessionRepository) RefreshToken(ctx context.Context) (string, bool, error) {
	return r.token(ctx, KeyRefreshToken)
}

func (r *sessionRepository) token(ctx context.Context, key string) (string, bool, error) {
	var token string
	found, err := loadJSON(ctx, r.store, key, &token, r.logger)
	if err != nil || !found || token == "" {
		return "", false, err
	}
	return token, true, nil
}

func (r *sessionRepository) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := saveJSON(ctx, r.store, KeyToken, access); err != nil {
		return err
	}
	if refresh == "" {
		if err := r.store.Delete(ctx, KeyRefreshToken); err != nil {
			return fmt.Errorf("failed to drop refresh token: %w", err)
		}
		return nil
	}
	return saveJSON(ctx, r.store, KeyRefreshToken, refresh)
}

func (r *sessionRepository) SaveRefreshedTokens(ctx context.Context, access, refresh string) error {
	if err := saveJSON(ctx, r.store, KeyToken, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return saveJSON(ctx, r.store, KeyRefreshToken, refresh)
}

func (r *sessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyToken, KeyRefreshToken, KeyAuthState); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// loadJSON decodes the value under key into dst. Corrupt values are logged
// and reported as missing.
func loadJSON(ctx context.Context, store storage.Store, key string, dst any, logger zerolog.Logger) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Stored value is corrupt, ignoring")
		return false, nil
	}
	return true, nil
}

func saveJSON(ctx context.Context, store storage.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
