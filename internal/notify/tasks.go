package notify

import (
	"context"
	"encoding/json"

	"github.com/brightlens/shootbook/internal/events"
	"github.com/brightlens/shootbook/internal/queue"
)

// Queue kinds for booking side effects.
const (
	TaskCalendarSync = "calendar-sync"
	TaskCRMPush      = "crm-push"
	TaskEmailSend    = "email-send"
)

// TaskPayload is the envelope carried by every side-effect task.
type TaskPayload struct {
	EventID   string `json:"eventId"`
	Topic     string `json:"topic"`
	BookingID string `json:"bookingId"`
}

// FanOut implements events.Scheduler by expanding one domain event into the
// per-integration tasks. Each task is deduplicated on (kind, event id) so
// replaying an event never doubles a delivery.
type FanOut struct {
	Queue       queue.Enqueuer
	MaxAttempts int
	Calendar    bool
	CRM         bool
	Email       bool
}

// Schedule enqueues the side-effect tasks for the event.
func (f FanOut) Schedule(ctx context.Context, event events.Event) error {
	if f.Queue.R == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicBookingCreated, events.TopicBookingRescheduled, events.TopicBookingCanceled:
	default:
		return nil
	}
	payload, err := json.Marshal(TaskPayload{
		EventID:   event.ID,
		Topic:     event.Topic,
		BookingID: event.AggregateID,
	})
	if err != nil {
		return err
	}
	kinds := make([]string, 0, 3)
	if f.Calendar {
		kinds = append(kinds, TaskCalendarSync)
	}
	if f.CRM {
		kinds = append(kinds, TaskCRMPush)
	}
	if f.Email {
		kinds = append(kinds, TaskEmailSend)
	}
	for _, kind := range kinds {
		task := queue.Task{
			Kind:           kind,
			Payload:        payload,
			IdempotencyKey: kind + ":" + event.ID,
			MaxAttempts:    f.MaxAttempts,
		}
		if err := f.Queue.Enqueue(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
