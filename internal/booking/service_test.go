package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/brightlens/shootbook/internal/catalog"
	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/events"
	"github.com/brightlens/shootbook/internal/promo"
)

type catalogStub struct {
	services []catalog.Service
}

func (c catalogStub) ListServicesForBooking(_ context.Context, _ string, ids []string) ([]catalog.Service, error) {
	var out []catalog.Service
	for _, svc := range c.services {
		for _, id := range ids {
			if svc.ID == id {
				out = append(out, svc)
			}
		}
	}
	return out, nil
}

type promoStub struct {
	rules map[string]promo.Rule
}

func (p promoStub) GetPromoByCode(_ context.Context, _ string, code string) (promo.Rule, error) {
	rule, ok := p.rules[code]
	if !ok {
		return promo.Rule{}, pgx.ErrNoRows
	}
	return rule, nil
}

func (p promoStub) CountPromoUsage(context.Context, string) (int64, error) { return 0, nil }
func (p promoStub) CountPromoUsageByRealtor(context.Context, string, string) (int64, error) {
	return 0, nil
}

type storeStub struct {
	created *Booking
	lines   []Line
	err     error
}

func (s *storeStub) CreateBooking(_ context.Context, b Booking, lines []Line) (Booking, error) {
	if s.err != nil {
		return Booking{}, s.err
	}
	b.ID = "bk-1"
	s.created = &b
	s.lines = lines
	return b, nil
}

func (s *storeStub) GetBooking(context.Context, string, string) (Booking, []Line, error) {
	if s.created == nil {
		return Booking{}, nil, pgx.ErrNoRows
	}
	return *s.created, s.lines, nil
}

type eventStoreStub struct {
	inserted []events.Event
	err      error
}

func (e *eventStoreStub) InsertEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	if e.err != nil {
		return events.Event{}, e.err
	}
	ev := events.Event{ID: "ev-1", Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	e.inserted = append(e.inserted, ev)
	return ev, nil
}

func testServices() []catalog.Service {
	return []catalog.Service{
		{ID: "a", Name: "Photography", PriceCents: 10000, DurationMin: 60, BufferAfterMin: 10, Active: true,
			Taxes: []catalog.TaxRate{{ID: "t1", Name: "GST", RateBps: 500}}},
		{ID: "b", Name: "Drone", PriceCents: 5000, DurationMin: 30, Active: true,
			Taxes: []catalog.TaxRate{{ID: "t1", Name: "GST", RateBps: 500}}},
	}
}

func newService(store *storeStub, rules map[string]promo.Rule, bus *events.Bus) *Service {
	return &Service{
		Catalog:          &catalog.Loader{Q: catalogStub{services: testServices()}},
		Promos:           &promo.Service{Q: promoStub{rules: rules}},
		Store:            store,
		Bus:              bus,
		DefaultBufferMin: 15,
		Currency:         "USD",
		Now:              func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func validInput() SubmitInput {
	return SubmitInput{
		ServiceIDs:   []string{"a", "b"},
		ScheduledAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Address:      "12 Harbor View Dr",
		RealtorName:  "Jordan Reyes",
		RealtorEmail: "agent@example.com",
	}
}

func TestSubmitPricesAndPersists(t *testing.T) {
	store := &storeStub{}
	evStore := &eventStoreStub{}
	rules := map[string]promo.Rule{
		"SAVE30": {ID: "p1", Code: "SAVE30", Kind: promo.KindAmount, AmountCents: 3000, Active: true},
	}
	svc := newService(store, rules, &events.Bus{Store: evStore})

	in := validInput()
	in.PromoCode = "SAVE30"
	created, lines, err := svc.Submit(context.Background(), "admin", in)
	require.NoError(t, err)

	require.Equal(t, int64(15000), created.SubtotalCents)
	require.Equal(t, int64(3000), created.DiscountCents)
	// 5% of the discounted bases 8000 and 4000.
	require.Equal(t, int64(600), created.TaxCents)
	require.Equal(t, int64(12600), created.TotalCents)
	require.NotNil(t, created.PromoID)
	require.Equal(t, "p1", *created.PromoID)
	require.Equal(t, "SAVE30", created.PromoCode)

	require.Len(t, lines, 2)
	require.Equal(t, int64(2000), lines[0].DiscountCents)
	require.Equal(t, int64(1000), lines[1].DiscountCents)

	// duration 90 visible, block adds buffers 10 + default 15
	require.Equal(t, 90, created.VisibleMin)
	require.Equal(t, 115, created.BlockMin)

	require.Len(t, evStore.inserted, 1)
	require.Equal(t, events.TopicBookingCreated, evStore.inserted[0].Topic)
	require.Equal(t, "bk-1", evStore.inserted[0].AggregateID)
}

func TestSubmitWithoutPromo(t *testing.T) {
	store := &storeStub{}
	svc := newService(store, nil, nil)

	created, _, err := svc.Submit(context.Background(), "admin", validInput())
	require.NoError(t, err)
	require.Equal(t, int64(0), created.DiscountCents)
	require.Equal(t, int64(750), created.TaxCents)
	require.Equal(t, int64(15750), created.TotalCents)
	require.Nil(t, created.PromoID)
}

func TestSubmitUnknownPromoRejected(t *testing.T) {
	store := &storeStub{}
	svc := newService(store, nil, nil)

	in := validInput()
	in.PromoCode = "NOPE"
	_, _, err := svc.Submit(context.Background(), "admin", in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CODE", appErr.Code)
	require.Nil(t, store.created)
}

func TestSubmitScopedPromoDiscountsOnlyMatchingService(t *testing.T) {
	store := &storeStub{}
	rules := map[string]promo.Rule{
		"DRONE10": {ID: "p2", Code: "DRONE10", Kind: promo.KindPercent, RateBps: 1000, Active: true,
			ServiceIDs: []string{"b"}},
	}
	svc := newService(store, rules, nil)

	in := validInput()
	in.PromoCode = "DRONE10"
	created, lines, err := svc.Submit(context.Background(), "admin", in)
	require.NoError(t, err)
	require.Equal(t, int64(500), created.DiscountCents)
	require.Equal(t, int64(0), lines[0].DiscountCents)
	require.Equal(t, int64(500), lines[1].DiscountCents)
}

func TestSubmitSucceedsWhenFanOutFails(t *testing.T) {
	store := &storeStub{}
	svc := newService(store, nil, &events.Bus{Store: &eventStoreStub{err: errors.New("db down")}})

	created, _, err := svc.Submit(context.Background(), "admin", validInput())
	require.NoError(t, err)
	require.Equal(t, "bk-1", created.ID)
}
