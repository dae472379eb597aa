package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/major-recommender/internal/config"
	"github.com/RubachokBoss/major-recommender/internal/models"
)

func TestNewDisabledIsNoop(t *testing.T) {
	p, err := New(config.EventsConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), "anything", struct{}{}))
	assert.NoError(t, p.Close())
}

func TestInvalidatorPublishesLogout(t *testing.T) {
	rec := &Recorder{}
	inv := NewSessionInvalidator(rec)

	require.NoError(t, inv.Invalidate(context.Background(), &models.UserProfile{ID: 5, Email: "a@b.co"}))
	require.NoError(t, inv.Invalidate(context.Background(), nil))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventSessionLoggedOut, events[0].Type)
	ev, ok := events[0].Payload.(models.SessionLoggedOutEvent)
	require.True(t, ok)
	assert.Equal(t, int64(5), ev.UserID)
	assert.Equal(t, "a@b.co", ev.Email)
	assert.NotZero(t, ev.Timestamp)
}

func TestRecorderError(t *testing.T) {
	rec := &Recorder{Err: errors.New("broker down")}
	err := NewSessionInvalidator(rec).Invalidate(context.Background(), nil)
	assert.EqualError(t, err, "broker down")
	assert.Empty(t, rec.Events())
}
