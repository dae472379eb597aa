package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/apierror"
	"github.com/RubachokBoss/major-recommender/internal/events"
	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/repository"
	"github.com/RubachokBoss/major-recommender/internal/service/integration"
)

// AnnouncementService keeps the cached announcement feed, newest first.
type AnnouncementService interface {
	Hydrate(ctx context.Context) ([]models.Announcement, error)
	List(ctx context.Context) ([]models.Announcement, error)
	Create(ctx context.Context, input models.AnnouncementInput) (models.Announcement, error)
	Update(ctx context.Context, id models.AnnouncementID, input models.AnnouncementInput) (models.Announcement, error)
	Delete(ctx context.Context, id models.AnnouncementID) error

	// AddLocal and UpdateLocal change the cache without calling the API.
	AddLocal(ctx context.Context, input models.AnnouncementInput) (models.Announcement, error)
	UpdateLocal(ctx context.Context, id models.AnnouncementID, input models.AnnouncementInput) (models.Announcement, error)

	Filter(f models.Filter) []models.Announcement
	SetFilters(f models.Filter) error
	Filters() models.Filter
	Filtered() []models.Announcement

	Announcements() []models.Announcement
	Loading() bool
	Error() string
	ClearError()
}

type announcementService struct {
	api       integration.APIClient
	repo      repository.AnnouncementRepository
	sessions  repository.SessionRepository
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	items    []models.Announcement
	filters  models.Filter
	inflight int
	lastErr  string
}

func NewAnnouncementService(
	api integration.APIClient,
	repo repository.AnnouncementRepository,
	sessions repository.SessionRepository,
	publisher events.Publisher,
	now func() time.Time,
	logger zerolog.Logger,
) AnnouncementService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if now == nil {
		now = time.Now
	}
	return &announcementService{
		api:       api,
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		now:       now,
		logger:    logger,
		items:     []models.Announcement{},
		filters:   models.DefaultFilter(),
	}
}

func (s *announcementService) Hydrate(ctx context.Context) ([]models.Announcement, error) {
	list, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read cached announcements")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = list
	return s.snapshot(), nil
}

func (s *announcementService) List(ctx context.Context) ([]models.Announcement, error) {
	token, err := s.token(ctx)
	if err != nil {
		return s.Announcements(), err
	}

	s.begin()
	list, err := s.api.ListAnnouncements(ctx, token)
	if err != nil {
		return s.Announcements(), s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
	s.items = dedupeAnnouncements(list)
	s.persist(ctx)

	s.logger.Debug().Int("count", len(s.items)).Msg("Announcements refreshed")
	return s.snapshot(), nil
}

func (s *announcementService) Create(ctx context.Context, input models.AnnouncementInput) (models.Announcement, error) {
	token, err := s.token(ctx)
	if err != nil {
		return models.Announcement{}, err
	}

	s.begin()
	created, err := s.api.CreateAnnouncement(ctx, token, input)
	if err != nil {
		return models.Announcement{}, s.fail(err)
	}

	s.mu.Lock()
	s.end()
	s.items = prepend(removeByID(s.items, created.ID), *created)
	s.persist(ctx)
	s.mu.Unlock()

	s.publish(ctx, models.EventAnnouncementCreated, *created)
	return *created, nil
}

func (s *announcementService) Update(ctx context.Context, id models.AnnouncementID, input models.AnnouncementInput) (models.Announcement, error) {
	token, err := s.token(ctx)
	if err != nil {
		return models.Announcement{}, err
	}

	s.begin()
	updated, err := s.api.UpdateAnnouncement(ctx, token, id, input)
	if err != nil {
		s.mu.Lock()
		known := indexOf(s.items, id) >= 0
		s.mu.Unlock()
		if !known {
			err = fmt.Errorf("announcement %s: %w: %w", id, apierror.ErrNotFound, err)
		}
		return models.Announcement{}, s.fail(err)
	}

	s.mu.Lock()
	s.end()
	if i := indexOf(s.items, updated.ID); i >= 0 {
		s.items[i] = *updated
	} else {
		s.items = prepend(removeByID(s.items, id), *updated)
	}
	s.persist(ctx)
	s.mu.Unlock()

	s.publish(ctx, models.EventAnnouncementUpdated, *updated)
	return *updated, nil
}

func (s *announcementService) Delete(ctx context.Context, id models.AnnouncementID) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}

	s.begin()
	err = s.api.DeleteAnnouncement(ctx, token, id)
	if err != nil && !apierror.IsNotFound(err) {
		return s.fail(err)
	}
	if err != nil {
		s.logger.Debug().Str("announcement_id", id.String()).Msg("Announcement already gone on server")
	}

	s.mu.Lock()
	s.end()
	s.items = removeByID(s.items, id)
	s.persist(ctx)
	s.mu.Unlock()

	s.publish(ctx, models.EventAnnouncementDeleted, models.Announcement{ID: id})
	return nil
}

func (s *announcementService) AddLocal(ctx context.Context, input models.AnnouncementInput) (models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	a := models.Announcement{ID: s.localID(now), CreatedAt: now}
	input.Apply(&a)

	s.items = prepend(s.items, a)
	s.persist(ctx)
	return a, nil
}

func (s *announcementService) UpdateLocal(ctx context.Context, id models.AnnouncementID, input models.AnnouncementInput) (models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, id)
	if i < 0 {
		return models.Announcement{}, fmt.Errorf("announcement %s: %w", id, apierror.ErrNotFound)
	}

	now := s.now().UTC()
	a := s.items[i]
	input.Apply(&a)
	a.UpdatedAt = &now
	s.items[i] = a
	s.persist(ctx)
	return a, nil
}

func (s *announcementService) Filter(f models.Filter) []models.Announcement {
	s.mu.Lock()
	list := s.snapshot()
	s.mu.Unlock()
	return FilterAnnouncements(list, f, s.now())
}

func (s *announcementService) SetFilters(f models.Filter) error {
	if !f.DateRange.Valid() {
		return apierror.Precondition(fmt.Sprintf("Unknown date range %q", f.DateRange))
	}
	if f.Category == "" {
		f.Category = models.CategoryAll
	}
	if f.DateRange == "" {
		f.DateRange = models.DateRangeAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
	return nil
}

func (s *announcementService) Filters() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *announcementService) Filtered() []models.Announcement {
	return s.Filter(s.Filters())
}

func (s *announcementService) Announcements() []models.Announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *announcementService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func (s *announcementService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *announcementService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

func (s *announcementService) token(ctx context.Context) (string, error) {
	token, ok, err := s.sessions.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return "", apierror.ErrUnauthenticated
	}
	return token, nil
}

func (s *announcementService) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.lastErr = ""
}

// end must be called with mu held.
func (s *announcementService) end() {
	s.inflight--
}

func (s *announcementService) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
	s.lastErr = apierror.Normalize(err)
	s.logger.Warn().
		Str("kind", string(apierror.Classify(err))).
		Int("status", apierror.StatusOf(err)).
		Msg(s.lastErr)
	return err
}

// persist must be called with mu held.
func (s *announcementService) persist(ctx context.Context) {
	if err := s.repo.Save(ctx, s.items); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist announcements")
	}
}

func (s *announcementService) publish(ctx context.Context, eventType string, a models.Announcement) {
	event := models.AnnouncementEvent{
		AnnouncementID: a.ID.String(),
		Title:          a.Title,
		Category:       a.Category,
		Timestamp:      s.now().Unix(),
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("Failed to publish announcement event")
	}
}

// localID derives an id from the clock, bumped past any id already cached.
// Must be called with mu held.
func (s *announcementService) localID(now time.Time) models.AnnouncementID {
	n := now.UnixMilli()
	for {
		id := models.AnnouncementID(strconv.FormatInt(n, 10))
		if indexOf(s.items, id) < 0 {
			return id
		}
		n++
	}
}

// snapshot must be called with mu held.
func (s *announcementService) snapshot() []models.Announcement {
	out := make([]models.Announcement, len(s.items))
	copy(out, s.items)
	return out
}

func indexOf(list []models.Announcement, id models.AnnouncementID) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func removeByID(list []models.Announcement, id models.AnnouncementID) []models.Announcement {
	out := list[:0:0]
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

func prepend(list []models.Announcement, a models.Announcement) []models.Announcement {
	out := make([]models.Announcement, 0, len(list)+1)
	out = append(out, a)
	return append(out, list...)
}

func dedupeAnnouncements(list []models.Announcement) []models.Announcement {
	seen := make(map[models.AnnouncementID]struct{}, len(list))
	out := make([]models.Announcement, 0, len(list))
	for _, a := range list {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
