package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
)

// ResultService holds the questionnaire history of the current user.
// Results are never persisted.
type ResultService interface {
	Fetch(ctx context.Context) ([]models.QuestionnaireResult, error)
	Get(ctx context.Context, id int64) (models.QuestionnaireResult, error)
	Populate(results []models.QuestionnaireResult)
	Results() []models.QuestionnaireResult
	Error() string
}

type resultService struct {
	api      integration.APIClient
	sessions repository.SessionRepository
	logger   zerolog.Logger

	mu      sync.Mutex
	results []models.QuestionnaireResult
	lastErr string
}

func NewResultService(api integration.APIClient, sessions repository.SessionRepository, logger zerolog.Logger) ResultService {
	return &resultService{
		api:      api,
		sessions: sessions,
		logger:   logger,
		results:  []models.QuestionnaireResult{},
	}
}

func (s *resultService) Fetch(ctx context.Context) ([]models.QuestionnaireResult, error) {
	token, err := s.token(ctx)
	if err != nil {
		return s.Results(), err
	}

	list, err := s.api.ListResults(ctx, token)
	if err != nil {
		return s.Results(), s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = list
	if s.results == nil {
		s.results = []models.QuestionnaireResult{}
	}
	s.lastErr = ""
	return s.snapshot(), nil
}

func (s *resultService) Get(ctx context.Context, id int64) (models.QuestionnaireResult, error) {
	token, err := s.token(ctx)
	if err != nil {
		return models.QuestionnaireResult{}, err
	}

	result, err := s.api.GetResult(ctx, token, id)
	if err != nil {
		return models.QuestionnaireResult{}, s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	for i := range s.results {
		if s.results[i].ID == result.ID {
			s.results[i] = *result
			return *result, nil
		}
	}
	s.results = append(s.results, *result)
	return *result, nil
}

func (s *resultService) Populate(results []models.QuestionnaireResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]models.QuestionnaireResult, len(results))
	copy(s.results, results)
	s.lastErr = ""
}

func (s *resultService) Results() []models.QuestionnaireResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *resultService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *resultService) token(ctx context.Context) (string, error) {
	token, ok, err := s.sessions.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return "", apierror.ErrUnauthenticated
	}
	return token, nil
}

func (s *resultService) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = apierror.Normalize(err)
	s.logger.Warn().
		Str("kind", string(apierror.Classify(err))).
		Int("status", apierror.StatusOf(err)).
		Msg(s.lastErr)
	return err
}

func (s *resultService) snapshot() []models.QuestionnaireResult {
	out := make([]models.QuestionnaireResult, len(s.results))
	copy(out, s.results)
	return out
}
