package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/config"
)

// Publisher delivers client events to whoever listens for them.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close() error
}

// New returns the RabbitMQ publisher when events are enabled, otherwise a
// publisher that drops everything.
func New(cfg config.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NewNoopPublisher(), nil
	}
	return NewRabbitMQPublisher(cfg.RabbitMQ, logger)
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
func (noopPublisher) Close() error                               { return nil }

type Recorded struct {
	Type    string
	Payload any
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{Type: eventType, Payload: payload})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}
