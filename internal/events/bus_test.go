package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brightlens/shootbook/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
}

func (s *stubStore) InsertEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.Event
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	bookingID := uuid.NewString()
	event, err := bus.Emit(context.Background(), events.TopicBookingCreated, bookingID, map[string]any{"bookingId": bookingID})
	require.NoError(t, err)
	require.Equal(t, events.TopicBookingCreated, store.lastTopic)
	require.JSONEq(t, `{"bookingId":"`+bookingID+`"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, bookingID, decoded["bookingId"])
}

func TestEmitSchedulerFailureDoesNotDropEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{err: errors.New("redis down")}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Scheduler: scheduler, Notifiers: []events.Notifier{notifier}}

	event, err := bus.Emit(context.Background(), events.TopicBookingCreated, uuid.NewString(), nil)
	require.Error(t, err)
	require.NotEmpty(t, event.ID)
	require.Len(t, notifier.events, 1)
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicBookingCanceled, uuid.NewString(), []byte("{not json"))
	require.Error(t, err)
}

func TestEmitRequiresAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicBookingCreated, "  ", nil)
	require.Error(t, err)
}
