package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/events"
	"github.com/brightlens/shootbook/internal/obs"
	"github.com/brightlens/shootbook/internal/queue"
)

// BookingReader loads booking details for side-effect delivery.
type BookingReader interface {
	GetBookingForSideEffects(ctx context.Context, bookingID string) (BookingDetails, error)
}

// Dispatcher executes side-effect tasks pulled off the queue. One instance
// serves all kinds; the worker binary runs one queue.Worker per kind wired to
// Handle.
type Dispatcher struct {
	Bookings  BookingReader
	Calendar  *CalendarClient
	CRM       *CRMClient
	Mail      common.EmailSender
	EmailFrom string
	Metrics   *obs.DomainMetrics
	Logger    zerolog.Logger
}

// Handle processes a single task. Errors are returned to the queue for retry.
func (d Dispatcher) Handle(ctx context.Context, task queue.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		// malformed payloads are unrecoverable, drop without retry
		d.Logger.Error().Err(err).Str("kind", task.Kind).Msg("sidefx_bad_payload")
		return nil
	}
	if d.Bookings == nil {
		return errors.New("notify: booking reader not configured")
	}
	booking, err := d.Bookings.GetBookingForSideEffects(ctx, payload.BookingID)
	if err != nil {
		return fmt.Errorf("notify: load booking %s: %w", payload.BookingID, err)
	}

	start := time.Now()
	switch task.Kind {
	case TaskCalendarSync:
		err = d.syncCalendar(ctx, payload.Topic, booking)
	case TaskCRMPush:
		err = d.pushCRM(ctx, booking)
	case TaskEmailSend:
		err = d.sendEmail(payload.Topic, booking)
	default:
		d.Logger.Warn().Str("kind", task.Kind).Msg("sidefx_unknown_kind")
		return nil
	}
	d.record(task.Kind, time.Since(start), err)
	return err
}

func (d Dispatcher) syncCalendar(ctx context.Context, topic string, b BookingDetails) error {
	if d.Calendar == nil {
		return nil
	}
	if topic == events.TopicBookingCanceled {
		return d.Calendar.RemoveBooking(ctx, b.ID)
	}
	return d.Calendar.SyncBooking(ctx, CalendarEvent{
		BookingID: b.ID,
		Title:     calendarTitle(b),
		Start:     b.ScheduledAt,
		End:       b.ScheduledAt.Add(time.Duration(b.VisibleMin) * time.Minute),
		Address:   b.Address,
	})
}

func (d Dispatcher) pushCRM(ctx context.Context, b BookingDetails) error {
	if d.CRM == nil {
		return nil
	}
	return d.CRM.PushBooking(ctx, CRMBooking{
		BookingID:    b.ID,
		RealtorEmail: b.RealtorEmail,
		RealtorName:  b.RealtorName,
		RealtorPhone: b.RealtorPhone,
		Address:      b.Address,
		TotalCents:   b.TotalCents,
		Status:       b.Status,
	})
}

func (d Dispatcher) sendEmail(topic string, b BookingDetails) error {
	if d.Mail == nil || b.RealtorEmail == "" {
		return nil
	}
	return d.Mail.Send(d.EmailFrom, b.RealtorEmail, emailSubject(topic, b), emailBody(topic, b))
}

func (d Dispatcher) record(kind string, elapsed time.Duration, err error) {
	if d.Metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.Metrics.SideEffectsTotal.WithLabelValues(kind, result).Inc()
	d.Metrics.SideEffectDur.WithLabelValues(kind).Observe(obs.DurationMillis(elapsed))
}

func calendarTitle(b BookingDetails) string {
	if len(b.ServiceNames) > 0 {
		return b.ServiceNames[0] + " shoot - " + b.Address
	}
	return "Shoot - " + b.Address
}
