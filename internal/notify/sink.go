// Package notify hands lifecycle events to the notification collaborator.
// Delivery is the collaborator's job; the core only produces each event once.
package notify

import (
	"context"
	"errors"
	"sync"

	"placement-core/internal/common/logger"
	"placement-core/internal/models"
)

// Sink receives notification events.
type Sink interface {
	Publish(ctx context.Context, ev models.NotificationEvent) error
	Name() string
}

// LogSink writes every event to the logger.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: logger.ForComponent(log, "notify")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, ev models.NotificationEvent) error {
	s.logger.Info("notification event", map[string]interface{}{
		"eventId": ev.ID,
		"userId":  ev.UserID,
		"kind":    string(ev.Kind),
		"payload": ev.Payload,
	})
	return nil
}

// MemorySink records events in order. Used when no external sink is configured and in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) Publish(ctx context.Context, ev models.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []models.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NotificationEvent(nil), s.events...)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Publish(ctx context.Context, ev models.NotificationEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
