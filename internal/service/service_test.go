package service

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/events"
	"github.com/RubachokBoss/major-recommender/internal/mockapi"
	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
	"github.com/RubachokBoss/major-recommender/internal/storage"
)

const seedPassword = "password123"

type fixture struct {
	api           integration.APIClient
	server        *httptest.Server
	store         storage.Store
	sessions      repository.SessionRepository
	announcements repository.AnnouncementRepository
	recorder      *events.Recorder
}

func newFixture(t *testing.T, exposeCodes bool) *fixture {
	t.Helper()

	srv, err := mockapi.New(config.MockServerConfig{
		JWTSecret:       "service-test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		SeedUsers:       true,
	}, config.CORSConfig{}, exposeCodes, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	return &fixture{
		api: integration.NewAPIClientWithHTTP(
			config.APIConfig{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second},
			ts.Client(),
			zerolog.Nop(),
		),
		server:        ts,
		store:         store,
		sessions:      repository.NewSessionRepository(store, zerolog.Nop()),
		announcements: repository.NewAnnouncementRepository(store, zerolog.Nop()),
		recorder:      &events.Recorder{},
	}
}

func (f *fixture) auth(opts AuthOptions) AuthService {
	return NewAuthService(f.api, f.sessions, events.NewSessionInvalidator(f.recorder), opts, zerolog.Nop())
}

func (f *fixture) announcementService(now func() time.Time) AnnouncementService {
	return NewAnnouncementService(f.api, f.announcements, f.sessions, f.recorder, now, zerolog.Nop())
}

func (f *fixture) loginAs(t *testing.T, email string) AuthService {
	t.Helper()
	auth := f.auth(AuthOptions{})
	_, err := auth.Login(context.Background(), email, seedPassword, models.RoleStudent)
	require.NoError(t, err)
	return auth
}

func (f *fixture) keyPresent(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func strPtr(s string) *string {
	return &s
}

func scorePtr(v float64) *models.Score {
	s := models.Score(v)
	return &s
}
