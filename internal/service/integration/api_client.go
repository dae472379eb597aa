package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/models"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxResponseBody = 4 << 20
)

// APIClient calls the platform REST API. Every failed call returns an
// *apierror.Error.
type APIClient interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	VerifyCode(ctx context.Context, req models.VerifyCodeRequest) (*models.DetailResponse, error)
	ResendCode(ctx context.Context, email string) (*models.DetailResponse, error)
	RefreshToken(ctx context.Context, refresh string) (*models.RefreshResponse, error)

	GetProfile(ctx context.Context, token string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (*models.UserProfile, error)

	ListAnnouncements(ctx context.Context, token string) ([]models.Announcement, error)
	CreateAnnouncement(ctx context.Context, token string, input models.AnnouncementInput) (*models.Announcement, error)
	UpdateAnnouncement(ctx context.Context, token string, id models.AnnouncementID, input models.AnnouncementInput) (*models.Announcement, error)
	DeleteAnnouncement(ctx context.Context, token string, id models.AnnouncementID) error

	ListResults(ctx context.Context, token string) ([]models.QuestionnaireResult, error)
	GetResult(ctx context.Context, token string, id int64) (*models.QuestionnaireResult, error)
}

type apiClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

func NewAPIClient(cfg config.APIConfig, logger zerolog.Logger) APIClient {
	return NewAPIClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

func NewAPIClientWithHTTP(cfg config.APIConfig, httpClient *http.Client, logger zerolog.Logger) APIClient {
	return &apiClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    httpClient,
		logger:    logger,
	}
}

func (c *apiClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, "log in", http.MethodPost, "/users/login/", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	var resp models.RegisterResponse
	if err := c.do(ctx, "register", http.MethodPost, "/users/register/", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) VerifyCode(ctx context.Context, req models.VerifyCodeRequest) (*models.DetailResponse, error) {
	var resp models.DetailResponse
	if err := c.do(ctx, "verify code", http.MethodPost, "/users/verification/code/confirm/", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ResendCode(ctx context.Context, email string) (*models.DetailResponse, error) {
	var resp models.DetailResponse
	if err := c.do(ctx, "request verification code", http.MethodPost, "/users/verification/code/", "", models.EmailRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) RefreshToken(ctx context.Context, refresh string) (*models.RefreshResponse, error) {
	var resp models.RefreshResponse
	if err := c.do(ctx, "refresh token", http.MethodPost, "/users/token/refresh/", "", models.RefreshRequest{Refresh: refresh}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) GetProfile(ctx context.Context, token string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := c.do(ctx, "fetch profile", http.MethodGet, "/users/profile/", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *apiClient) UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := c.do(ctx, "update profile", http.MethodPut, "/users/profile/", token, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *apiClient) ListAnnouncements(ctx context.Context, token string) ([]models.Announcement, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "fetch announcements", http.MethodGet, "/notifications/", token, nil, &raw); err != nil {
		return nil, err
	}
	var list []models.Announcement
	if err := decodeList(raw, &list); err != nil {
		return nil, &apierror.Error{Op: "fetch announcements", Kind: apierror.KindUnknown, Status: http.StatusOK, Body: raw, Err: err}
	}
	return list, nil
}

func (c *apiClient) CreateAnnouncement(ctx context.Context, token string, input models.AnnouncementInput) (*models.Announcement, error) {
	var a models.Announcement
	if err := c.do(ctx, "create announcement", http.MethodPost, "/notifications/", token, input, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *apiClient) UpdateAnnouncement(ctx context.Context, token string, id models.AnnouncementID, input models.AnnouncementInput) (*models.Announcement, error) {
	var a models.Announcement
	path := "/notifications/" + url.PathEscape(id.String()) + "/"
	if err := c.do(ctx, "update announcement", http.MethodPut, path, token, input, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *apiClient) DeleteAnnouncement(ctx context.Context, token string, id models.AnnouncementID) error {
	path := "/notifications/" + url.PathEscape(id.String()) + "/"
	return c.do(ctx, "delete announcement", http.MethodDelete, path, token, nil, nil)
}

func (c *apiClient) ListResults(ctx context.Context, token string) ([]models.QuestionnaireResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "fetch results", http.MethodGet, "/questionnaire/results/", token, nil, &raw); err != nil {
		return nil, err
	}
	var list []models.QuestionnaireResult
	if err := decodeList(raw, &list); err != nil {
		return nil, &apierror.Error{Op: "fetch results", Kind: apierror.KindUnknown, Status: http.StatusOK, Body: raw, Err: err}
	}
	return list, nil
}

func (c *apiClient) GetResult(ctx context.Context, token string, id int64) (*models.QuestionnaireResult, error) {
	var r models.QuestionnaireResult
	path := "/questionnaire/results/" + strconv.FormatInt(id, 10) + "/"
	if err := c.do(ctx, "fetch result", http.MethodGet, path, token, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *apiClient) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.logger.With().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Logger()

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Request failed without response")
		return apierror.Network(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("Failed to read response body")
		return apierror.Network(op, err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(raw)).
		Msg("API request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.FromResponse(op, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apierror.Error{Op: op, Kind: apierror.KindUnknown, Status: resp.StatusCode, Body: raw, Err: err}
	}
	return nil
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]} page.
func decodeList(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return fmt.Errorf("failed to decode page: %w", err)
		}
		if page.Results == nil {
			return errors.New("failed to decode list: object without results")
		}
		trimmed = page.Results
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	return nil
}
