package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"placement-core/internal/common/logger"
	"placement-core/internal/common/metrics"
	"placement-core/internal/models"
)

// Dispatcher stamps events and hands them to a Sink. A sink failure is logged and
// counted but never fails the operation that produced the event.
type Dispatcher struct {
	sink   Sink
	logger logger.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher publishing to sink, or to the log when sink is nil.
func NewDispatcher(sink Sink, log logger.Logger) *Dispatcher {
	if sink == nil {
		sink = NewLogSink(log)
	}
	return &Dispatcher{
		sink:   sink,
		logger: logger.ForComponent(log, "notify"),
		now:    time.Now,
	}
}

func (d *Dispatcher) Emit(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]interface{}) {
	ev := models.NotificationEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		Kind:       kind,
		Payload:    payload,
		OccurredAt: d.now().UTC(),
	}

	if err := d.sink.Publish(ctx, ev); err != nil {
		metrics.NotificationsPublished.WithLabelValues(d.sink.Name(), "failed").Inc()
		d.logger.Error("failed to publish notification", map[string]interface{}{
			"eventId": ev.ID,
			"userId":  userID,
			"kind":    string(kind),
			"error":   err,
		})
		return
	}
	metrics.NotificationsPublished.WithLabelValues(d.sink.Name(), "sent").Inc()
}
