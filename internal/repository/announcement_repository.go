package repository

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/models"
	"github.com/RubachokBoss/major-recommender/internal/storage"
)

// AnnouncementRepository persists the whole cached collection as one value.
type AnnouncementRepository interface {
	Load(ctx context.Context) ([]models.Announcement, error)
	Save(ctx context.Context, list []models.Announcement) error
}

type announcementRepository struct {
	store  storage.Store
	logger zerolog.Logger
}

func NewAnnouncementRepository(store storage.Store, logger zerolog.Logger) AnnouncementRepository {
	return &announcementRepository{store: store, logger: logger}
}

func (r *announcementRepository) Load(ctx context.Context) ([]models.Announcement, error) {
	var list []models.Announcement
	found, err := loadJSON(ctx, r.store, KeyAnnouncements, &list, r.logger)
	if err != nil || !found {
		return []models.Announcement{}, err
	}
	return dedupe(list), nil
}

func (r *announcementRepository) Save(ctx context.Context, list []models.Announcement) error {
	if list == nil {
		list = []models.Announcement{}
	}
	return saveJSON(ctx, r.store, KeyAnnouncements, list)
}

// dedupe keeps the first record of each id.
func dedupe(list []models.Announcement) []models.Announcement {
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
