package events

import (
	"context"
	"time"

	"github.com/RubachokBoss/major-recommender/internal/models"
)

// SessionInvalidator is told when a session ends locally so that other
// parties can drop it too.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, user *models.UserProfile) error
}

type publishingInvalidator struct {
	publisher Publisher
}

func NewSessionInvalidator(publisher Publisher) SessionInvalidator {
	return &publishingInvalidator{publisher: publisher}
}

func (i *publishingInvalidator) Invalidate(ctx context.Context, user *models.UserProfile) error {
	event := models.SessionLoggedOutEvent{Timestamp: time.Now().Unix()}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	return i.publisher.Publish(ctx, models.EventSessionLoggedOut, event)
}
