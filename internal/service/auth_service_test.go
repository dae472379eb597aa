package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/events"
	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
	"github.com/RubachokBoss/major-recommender/internal/storage"
)

func TestLoginFailureThenSuccess(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})
	ctx := context.Background()

	session, err := auth.Login(ctx, "student@example.com", "wrong-password", models.RoleStudent)
	require.Error(t, err)
	assert.False(t, session.IsAuthenticated)
	assert.Nil(t, session.User)
	assert.Equal(t, "Password: Invalid credentials.", session.Error)
	assert.Equal(t, models.SessionError, auth.State())
	assert.False(t, f.keyPresent(t, repository.KeyToken))

	session, err = auth.Login(ctx, "student@example.com", seedPassword, models.RoleStudent)
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.Empty(t, session.Error)
	require.NotNil(t, session.User)
	assert.Equal(t, "student@example.com", session.User.Email)
	assert.Equal(t, models.RoleStudent, session.Role)
	assert.False(t, session.Loading)
	assert.Equal(t, models.SessionAuthenticated, auth.State())

	assert.True(t, f.keyPresent(t, repository.KeyToken))
	assert.True(t, f.keyPresent(t, repository.KeyRefreshToken))
	assert.True(t, f.keyPresent(t, repository.KeyAuthState))
}

func TestLoginFailureKeepsPreviousUser(t *testing.T) {
	f := newFixture(t, false)
	auth := f.loginAs(t, "expert@example.com")

	session, err := auth.Login(context.Background(), "nobody@example.com", "whatever1", models.RoleExpert)
	require.Error(t, err)
	assert.Equal(t, "Email error: No user found with this email address.", session.Error)
	require.NotNil(t, session.User)
	assert.Equal(t, "expert@example.com", session.User.Email)
}

func TestLoginPreconditions(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})
	ctx := context.Background()

	_, err := auth.Login(ctx, "student@example.com", seedPassword, models.Role(""))
	var pre *apierror.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "No role selected", pre.Message)

	_, err = auth.Login(ctx, " ", "", models.RoleStudent)
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "Email is required; Password is required", pre.Message)

	assert.Empty(t, auth.Session().Error)
	assert.Equal(t, models.SessionUnknown, auth.State())
}

func TestLogoutClearsPersistence(t *testing.T) {
	f := newFixture(t, false)
	auth := f.loginAs(t, "student@example.com")

	session := auth.Logout(context.Background())
	auth.Wait()

	assert.Equal(t, models.DefaultSession(), session)
	assert.Equal(t, models.SessionAnonymous, auth.State())
	for _, key := range []string{repository.KeyAuthState, repository.KeyToken, repository.KeyRefreshToken} {
		assert.False(t, f.keyPresent(t, key), key)
	}

	recorded := f.recorder.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.EventSessionLoggedOut, recorded[0].Type)
	event, ok := recorded[0].Payload.(models.SessionLoggedOutEvent)
	require.True(t, ok)
	assert.Equal(t, "student@example.com", event.Email)
}

func TestLogoutIgnoresInvalidatorFailure(t *testing.T) {
	f := newFixture(t, false)
	f.recorder.Err = errors.New("broker down")
	auth := f.loginAs(t, "student@example.com")

	session := auth.Logout(context.Background())
	auth.Wait()

	assert.False(t, session.IsAuthenticated)
	assert.Empty(t, session.Error)
	assert.False(t, f.keyPresent(t, repository.KeyToken))
}

func TestInitializeRestoresSession(t *testing.T) {
	f := newFixture(t, false)
	f.loginAs(t, "admin@example.com")

	restarted := f.auth(AuthOptions{})
	assert.Equal(t, models.SessionUnknown, restarted.State())

	session, err := restarted.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	require.NotNil(t, session.User)
	assert.Equal(t, models.RoleAdmin, session.Role)
	assert.Equal(t, models.SessionAuthenticated, restarted.State())
}

func TestInitializeWithoutToken(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})

	session, err := auth.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSession(), session)
	assert.Equal(t, models.SessionAnonymous, auth.State())
}

func TestInitializeWithRejectedTokenClearsStorage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.sessions.SaveTokens(ctx, "stale-access", "stale-refresh"))
	require.NoError(t, f.sessions.Save(ctx, models.Session{
		IsAuthenticated: true,
		User:            &models.UserProfile{ID: 9, Email: "gone@example.com", Role: models.RoleStudent},
		Role:            models.RoleStudent,
	}))

	auth := f.auth(AuthOptions{})
	session, err := auth.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, session.IsAuthenticated)
	assert.Nil(t, session.User)
	for _, key := range []string{repository.KeyAuthState, repository.KeyToken, repository.KeyRefreshToken} {
		assert.False(t, f.keyPresent(t, key), key)
	}
}

func validRegistration(email string) models.RegisterRequest {
	return models.RegisterRequest{
		Email:           email,
		Password:        "secret123",
		ConfirmPassword: "secret123",
		FirstName:       "Nora",
		LastName:        "Kim",
		Gender:          "Female",
		GATScore:        scorePtr(77),
	}
}

func TestRegisterDropsDevCodeByDefault(t *testing.T) {
	f := newFixture(t, true)
	auth := f.auth(AuthOptions{})

	session, err := auth.Register(context.Background(), validRegistration("nora@example.com"))
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	require.NotNil(t, session.User)
	assert.Equal(t, "nora@example.com", session.User.Email)
	assert.Equal(t, "female", session.User.Gender)
	assert.Equal(t, "Account created successfully.", session.VerificationMessage)
	assert.Empty(t, session.DevVerificationCode)

	stored, err := f.sessions.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored.DevVerificationCode)
}

func TestRegisterKeepsDevCodeWhenEnabledThenVerifies(t *testing.T) {
	f := newFixture(t, true)
	auth := f.auth(AuthOptions{ExposeDevVerificationCode: true})
	ctx := context.Background()

	session, err := auth.Register(ctx, validRegistration("nora@example.com"))
	require.NoError(t, err)
	require.Len(t, session.DevVerificationCode, 6)

	_, err = auth.VerifyEmail(ctx, "nora@example.com", "12ab")
	var pre *apierror.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "Please enter a valid 6-digit verification code", pre.Message)

	session, err = auth.VerifyEmail(ctx, "nora@example.com", session.DevVerificationCode)
	require.NoError(t, err)
	assert.Equal(t, "Verification successful.", session.VerificationMessage)
	assert.Empty(t, session.DevVerificationCode)
	require.NotNil(t, session.User)
	assert.True(t, session.User.IsVerified)
}

func TestRegisterServerRejection(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})

	session, err := auth.Register(context.Background(), validRegistration("student@example.com"))
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.Classify(err))
	assert.Equal(t, "Email error: user with this email already exists.", session.Error)
	assert.False(t, session.IsAuthenticated)
}

func TestResendVerificationCode(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})
	ctx := context.Background()

	session, err := auth.ResendVerificationCode(ctx, "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Verification code has been sent to your email.", session.VerificationMessage)

	_, err = auth.ResendVerificationCode(ctx, "")
	var pre *apierror.PreconditionError
	assert.ErrorAs(t, err, &pre)
}

func TestFetchProfileRequiresToken(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})

	_, err := auth.FetchProfile(context.Background())
	assert.ErrorIs(t, err, apierror.ErrUnauthenticated)
	assert.Equal(t, apierror.KindAuth, apierror.Classify(err))
}

func TestUpdateProfileReplacesUser(t *testing.T) {
	f := newFixture(t, false)
	auth := f.loginAs(t, "student@example.com")
	ctx := context.Background()

	user, err := auth.UpdateProfile(ctx, models.ProfileUpdate{FirstName: strPtr("Stella"), GATScore: scorePtr(90)})
	require.NoError(t, err)
	assert.Equal(t, "Stella", user.FirstName)
	assert.InDelta(t, 90, user.GATScore.Float64(), 0.001)
	assert.Equal(t, "Stella", auth.Session().User.FirstName)

	_, err = auth.UpdateProfile(ctx, models.ProfileUpdate{SAATHScore: scorePtr(140)})
	var pre *apierror.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "SAATH score must be between 0 and 100", pre.Message)
}

func TestMergeUser(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.auth(AuthOptions{}).MergeUser(ctx, models.ProfileUpdate{FirstName: strPtr("X")})
	require.Error(t, err)

	auth := f.loginAs(t, "student@example.com")
	session, err := auth.MergeUser(ctx, models.ProfileUpdate{LastName: strPtr("Merged")})
	require.NoError(t, err)
	assert.Equal(t, "Merged", session.User.LastName)
	assert.Equal(t, "Student", session.User.FirstName)

	stored, err := f.sessions.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Merged", stored.User.LastName)
}

func TestRefreshSessionAndTokenExpiry(t *testing.T) {
	f := newFixture(t, false)
	auth := f.loginAs(t, "student@example.com")
	ctx := context.Background()

	before, _, err := f.sessions.AccessToken(ctx)
	require.NoError(t, err)

	exp, ok, err := auth.TokenExpiry(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	require.NoError(t, auth.RefreshSession(ctx))
	after, ok, err := f.sessions.AccessToken(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, before, after)
}

func TestRefreshSessionWithoutToken(t *testing.T) {
	f := newFixture(t, false)
	auth := f.auth(AuthOptions{})

	assert.ErrorIs(t, auth.RefreshSession(context.Background()), apierror.ErrUnauthenticated)

	_, ok, err := auth.TokenExpiry(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearError(t *testing.T) {
	f := newFixture(t, false)
	auth := NewAuthService(f.api, f.sessions, nil, AuthOptions{}, zerolog.Nop())

	_, err := auth.Login(context.Background(), "student@example.com", "bad-password", models.RoleStudent)
	require.Error(t, err)
	require.NotEmpty(t, auth.Session().Error)

	auth.ClearError()
	assert.Empty(t, auth.Session().Error)
	assert.Equal(t, models.SessionAnonymous, auth.State())

	// A nil invalidator is allowed.
	auth.Logout(context.Background())
	auth.Wait()
}

func TestLoginWithoutRefreshTokenDropsPreviousOne(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/login/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access":"access-new","user":{"id":9,"email":"other@example.com","role":"student"}}`))
	}))
	t.Cleanup(ts.Close)

	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, repository.KeyRefreshToken, `"refresh-of-previous-account"`))
	sessions := repository.NewSessionRepository(store, zerolog.Nop())
	api := integration.NewAPIClientWithHTTP(config.APIConfig{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second}, ts.Client(), zerolog.Nop())
	auth := NewAuthService(api, sessions, events.NewSessionInvalidator(&events.Recorder{}), AuthOptions{}, zerolog.Nop())

	session, err := auth.Login(ctx, "other@example.com", seedPassword, models.RoleStudent)
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)

	token, ok, err := sessions.AccessToken(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-new", token)

	_, ok, err = sessions.RefreshToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
