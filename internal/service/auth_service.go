package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/events"
	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
)

const defaultInvalidateTimeout = 5 * time.Second

// AuthService owns the client session. Every operation returns the
// resulting session snapshot; failures are also kept in Session().Error.
type AuthService interface {
	Initialize(ctx context.Context) (models.Session, error)
	Login(ctx context.Context, email, password string, role models.Role) (models.Session, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.Session, error)
	VerifyEmail(ctx context.Context, email, code string) (models.Session, error)
	ResendVerificationCode(ctx context.Context, email string) (models.Session, error)
	FetchProfile(ctx context.Context) (models.UserProfile, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.UserProfile, error)
	MergeUser(ctx context.Context, update models.ProfileUpdate) (models.Session, error)
	RefreshSession(ctx context.Context) error
	Logout(ctx context.Context) models.Session
	ClearError()

	Session() models.Session
	State() models.SessionState
	// TokenExpiry reads the exp claim of the stored access token without
	// verifying its signature.
	TokenExpiry(ctx context.Context) (time.Time, bool, error)
	// Wait blocks until background session invalidations have finished.
	Wait()
}

type AuthOptions struct {
	// ExposeDevVerificationCode keeps the verification code some dev
	// servers echo back on registration.
	ExposeDevVerificationCode bool
	InvalidateTimeout         time.Duration
}

type authService struct {
	api         integration.APIClient
	sessions    repository.SessionRepository
	invalidator events.SessionInvalidator
	opts        AuthOptions
	logger      zerolog.Logger

	mu          sync.Mutex
	session     models.Session
	initialized bool
	inflight    int

	background sync.WaitGroup
}

func NewAuthService(
	api integration.APIClient,
	sessions repository.SessionRepository,
	invalidator events.SessionInvalidator,
	opts AuthOptions,
	logger zerolog.Logger,
) AuthService {
	if opts.InvalidateTimeout <= 0 {
		opts.InvalidateTimeout = defaultInvalidateTimeout
	}
	return &authService{
		api:         api,
		sessions:    sessions,
		invalidator: invalidator,
		opts:        opts,
		logger:      logger,
		session:     models.DefaultSession(),
	}
}

func (s *authService) Initialize(ctx context.Context) (models.Session, error) {
	stored, err := s.sessions.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored session")
	}
	stored.Loading = false
	stored.Error = ""

	s.mu.Lock()
	s.session = stored
	s.initialized = true
	s.mu.Unlock()

	token, ok, err := s.sessions.AccessToken(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored token")
	}
	if !ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.session = models.DefaultSession()
		return s.session.Clone(), nil
	}

	s.begin()
	user, err := s.api.GetProfile(ctx, token)
	if err != nil {
		s.logger.Info().Err(err).Msg("Stored token rejected, clearing session")

		s.mu.Lock()
		defer s.mu.Unlock()
		s.end()
		s.session = models.DefaultSession()
		if clearErr := s.sessions.Clear(ctx); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("Failed to clear stored session")
		}
		return s.session.Clone(), nil
	}

	return s.complete(ctx, func(sess *models.Session) {
		sess.IsAuthenticated = true
		sess.User = user
		sess.Role = user.Role
	}), nil
}

func (s *authService) Login(ctx context.Context, email, password string, role models.Role) (models.Session, error) {
	if err := validateLogin(email, password, role); err != nil {
		return s.Session(), err
	}

	s.begin()
	resp, err := s.api.Login(ctx, models.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Role:     role,
	})
	if err != nil {
		return s.fail(err)
	}

	user := resp.User
	if user == nil {
		if user, err = s.api.GetProfile(ctx, resp.Access); err != nil {
			return s.fail(err)
		}
	}

	s.saveTokens(ctx, resp.Access, resp.Refresh)

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("Logged in")

	return s.complete(ctx, func(sess *models.Session) {
		sess.IsAuthenticated = true
		sess.User = user
		sess.Role = user.Role
		sess.DevVerificationCode = ""
	}), nil
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (models.Session, error) {
	if req.Role == "" {
		req.Role = models.RoleStudent
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Gender = strings.ToLower(req.Gender)
	if err := validateRegistration(req); err != nil {
		return s.Session(), err
	}

	s.begin()
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return s.fail(err)
	}

	user := resp.User
	if user == nil {
		if user, err = s.api.GetProfile(ctx, resp.Access); err != nil {
			return s.fail(err)
		}
	}

	s.saveTokens(ctx, resp.Access, resp.Refresh)

	devCode := ""
	if resp.DevVerificationCode != "" {
		if s.opts.ExposeDevVerificationCode {
			devCode = resp.DevVerificationCode
			s.logger.Warn().Msg("Development verification code kept in session")
		} else {
			s.logger.Debug().Msg("Development verification code dropped")
		}
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("Registered")

	return s.complete(ctx, func(sess *models.Session) {
		sess.IsAuthenticated = true
		sess.User = user
		sess.Role = user.Role
		sess.VerificationMessage = resp.Message
		sess.DevVerificationCode = devCode
	}), nil
}

func (s *authService) VerifyEmail(ctx context.Context, email, code string) (models.Session, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if err := validateVerificationCode(email, code); err != nil {
		return s.Session(), err
	}

	s.begin()
	resp, err := s.api.VerifyCode(ctx, models.VerifyCodeRequest{Email: email, Code: code})
	if err != nil {
		return s.fail(err)
	}

	return s.complete(ctx, func(sess *models.Session) {
		sess.VerificationMessage = resp.Detail
		sess.DevVerificationCode = ""
		if sess.User != nil && strings.EqualFold(sess.User.Email, email) {
			sess.User.IsVerified = true
		}
	}), nil
}

func (s *authService) ResendVerificationCode(ctx context.Context, email string) (models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.Session(), &apierror.PreconditionError{
			Message: "Email is required",
			Fields:  map[string]string{"email": "Email is required"},
		}
	}

	s.begin()
	resp, err := s.api.ResendCode(ctx, email)
	if err != nil {
		return s.fail(err)
	}

	message := resp.Detail
	if message == "" {
		message = "Verification code has been resent to your email."
	}
	return s.complete(ctx, func(sess *models.Session) {
		sess.VerificationMessage = message
	}), nil
}

func (s *authService) FetchProfile(ctx context.Context) (models.UserProfile, error) {
	token, err := s.requireToken(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}

	s.begin()
	user, err := s.api.GetProfile(ctx, token)
	if err != nil {
		_, err = s.fail(err)
		return models.UserProfile{}, err
	}

	s.complete(ctx, func(sess *models.Session) {
		sess.User = user
		sess.Role = user.Role
	})
	return *user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.UserProfile, error) {
	token, err := s.requireToken(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	if err := validateProfileUpdate(update); err != nil {
		return models.UserProfile{}, err
	}

	s.begin()
	user, err := s.api.UpdateProfile(ctx, token, update)
	if err != nil {
		_, err = s.fail(err)
		return models.UserProfile{}, err
	}

	s.complete(ctx, func(sess *models.Session) {
		sess.User = user
		sess.Role = user.Role
	})
	return *user, nil
}

func (s *authService) MergeUser(ctx context.Context, update models.ProfileUpdate) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.User == nil {
		return s.session.Clone(), apierror.Precondition("No user profile to update")
	}
	user := *s.session.User
	update.Apply(&user)
	s.session.User = &user
	s.persist(ctx)
	return s.session.Clone(), nil
}

func (s *authService) RefreshSession(ctx context.Context) error {
	refresh, ok, err := s.sessions.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !ok {
		return apierror.ErrUnauthenticated
	}

	s.begin()
	resp, err := s.api.RefreshToken(ctx, refresh)
	if err != nil {
		_, err = s.fail(err)
		return err
	}

	if err := s.sessions.SaveRefreshedTokens(ctx, resp.Access, resp.Refresh); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store refreshed tokens")
	}
	s.complete(ctx, func(*models.Session) {})
	return nil
}

func (s *authService) Logout(ctx context.Context) models.Session {
	s.mu.Lock()
	user := s.session.User
	s.session = models.DefaultSession()
	s.initialized = true
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear stored session")
	}
	snapshot := s.session.Clone()
	s.mu.Unlock()

	if s.invalidator != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.InvalidateTimeout)
			defer cancel()
			if err := s.invalidator.Invalidate(invCtx, user); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to invalidate session")
			}
		}()
	}

	s.logger.Info().Msg("Logged out")
	return snapshot
}

func (s *authService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Error = ""
}

func (s *authService) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

func (s *authService) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.inflight > 0:
		return models.SessionAuthenticating
	case !s.initialized:
		return models.SessionUnknown
	case s.session.IsAuthenticated:
		return models.SessionAuthenticated
	case s.session.Error != "":
		return models.SessionError
	default:
		return models.SessionAnonymous
	}
}

func (s *authService) TokenExpiry(ctx context.Context) (time.Time, bool, error) {
	token, ok, err := s.sessions.AccessToken(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, false, nil
	}
	return exp.Time, true, nil
}

func (s *authService) Wait() {
	s.background.Wait()
}

func (s *authService) requireToken(ctx context.Context) (string, error) {
	token, ok, err := s.sessions.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return "", apierror.ErrUnauthenticated
	}
	return token, nil
}

func (s *authService) saveTokens(ctx context.Context, access, refresh string) {
	if err := s.sessions.SaveTokens(ctx, access, refresh); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store tokens")
	}
}

// begin marks an operation in flight and clears the previous error.
func (s *authService) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.session.Loading = true
	s.session.Error = ""
}

// end must be called with mu held.
func (s *authService) end() {
	s.inflight--
	s.session.Loading = s.inflight > 0
	s.initialized = true
}

func (s *authService) complete(ctx context.Context, apply func(*models.Session)) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
	apply(&s.session)
	s.session.Error = ""
	s.persist(ctx)
	return s.session.Clone()
}

func (s *authService) fail(err error) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
	s.session.Error = apierror.Normalize(err)
	s.logger.Warn().
		Str("kind", string(apierror.Classify(err))).
		Int("status", apierror.StatusOf(err)).
		Msg(s.session.Error)
	return s.session.Clone(), err
}

// persist must be called with mu held. Storage is a cache, so a failed
// write is logged and the transition stands.
func (s *authService) persist(ctx context.Context) {
	snapshot := s.session.Clone()
	snapshot.Loading = false
	if err := s.sessions.Save(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
	}
}
