package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightlens/shootbook/internal/catalog"
	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/events"
	"github.com/brightlens/shootbook/internal/obs"
	"github.com/brightlens/shootbook/internal/pricing"
	"github.com/brightlens/shootbook/internal/promo"
)

// Store persists bookings. CreateBooking must write the booking, its lines
// and the promo usage row in one transaction, re-checking the slot under
// lock; a conflicting slot surfaces as a SLOT_TAKEN AppError.
type Store interface {
	CreateBooking(ctx context.Context, b Booking, lines []Line) (Booking, error)
	GetBooking(ctx context.Context, adminID, bookingID string) (Booking, []Line, error)
}

// Service runs the booking flow: resolve catalog, evaluate promo, price,
// persist atomically, then fan out side effects best-effort.
type Service struct {
	Catalog          *catalog.Loader
	Promos           *promo.Service
	Store            Store
	Bus              *events.Bus
	DefaultBufferMin int
	Currency         string
	Metrics          *obs.DomainMetrics
	Logger           zerolog.Logger
	Now              func() time.Time
}

// Submit creates a booking for the admin's public page. Pricing iterates
// services in id-ascending order (the catalog loader pins this) so promo
// proration is deterministic.
func (s *Service) Submit(ctx context.Context, adminID string, in SubmitInput) (Booking, []Line, error) {
	services, err := s.Catalog.LoadForBooking(ctx, adminID, in.ServiceIDs)
	if err != nil {
		s.countFailure(err)
		return Booking{}, nil, err
	}

	priceItems := make([]pricing.Item, len(services))
	promoItems := make([]promo.Item, len(services))
	for i, svc := range services {
		rates := make([]int32, len(svc.Taxes))
		for j, tax := range svc.Taxes {
			rates[j] = tax.RateBps
		}
		priceItems[i] = pricing.Item{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			PriceCents:  svc.PriceCents,
			TaxRatesBps: rates,
		}
		promoItems[i] = promo.Item{ServiceID: svc.ID, PriceCents: svc.PriceCents}
	}

	var promoResult promo.Result
	var eligible []int64
	if in.PromoCode != "" {
		promoResult, err = s.Promos.Evaluate(ctx, adminID, in.PromoCode, in.RealtorEmail, promoItems)
		if err != nil {
			appErr := promoError(err)
			s.countFailure(appErr)
			s.countPromo(appErr.Code)
			return Booking{}, nil, appErr
		}
		eligible = promoResult.EligibleShares
		s.countPromo("applied")
	}

	summary := pricing.QuoteScoped(priceItems, promoResult.DiscountCents, eligible)

	durations := make([]pricing.ServiceDuration, len(services))
	for i, svc := range services {
		durations[i] = pricing.ServiceDuration{
			DurationMin:     svc.DurationMin,
			BufferBeforeMin: svc.BufferBeforeMin,
			BufferAfterMin:  svc.BufferAfterMin,
		}
	}
	window := pricing.ComposeWindow(durations, s.DefaultBufferMin)

	b := Booking{
		AdminID:       adminID,
		Status:        StatusConfirmed,
		ScheduledAt:   in.ScheduledAt,
		BlockMin:      window.BlockMin,
		VisibleMin:    window.VisibleMin,
		Address:       in.Address,
		RealtorName:   in.RealtorName,
		RealtorEmail:  in.RealtorEmail,
		RealtorPhone:  in.RealtorPhone,
		Notes:         in.Notes,
		PromoCode:     promoResult.Code,
		SubtotalCents: summary.SubtotalCents,
		DiscountCents: summary.DiscountCents,
		TaxCents:      summary.TaxCents,
		TotalCents:    summary.TotalCents,
		Currency:      s.Currency,
		CreatedAt:     s.now(),
	}
	if promoResult.PromoID != "" {
		id := promoResult.PromoID
		b.PromoID = &id
	}

	lines := make([]Line, len(summary.Items))
	for i, q := range summary.Items {
		lines[i] = Line{
			ServiceID:     q.ServiceID,
			ServiceName:   q.ServiceName,
			PriceCents:    q.UnitPriceCents,
			DiscountCents: q.DiscountCents,
			TaxCents:      q.TaxCents,
			DurationMin:   services[i].DurationMin,
		}
	}

	created, err := s.Store.CreateBooking(ctx, b, lines)
	if err != nil {
		s.countFailure(err)
		return Booking{}, nil, err
	}
	if s.Metrics != nil {
		s.Metrics.BookingsCreated.Inc()
	}

	s.emit(ctx, created)
	return created, lines, nil
}

// Get loads a booking scoped to the admin.
func (s *Service) Get(ctx context.Context, adminID, bookingID string) (Booking, []Line, error) {
	return s.Store.GetBooking(ctx, adminID, bookingID)
}

// emit publishes booking.created. Fan-out problems are logged, never returned:
// the booking is already committed and side effects are best-effort.
func (s *Service) emit(ctx context.Context, b Booking) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"bookingId":  b.ID,
		"adminId":    b.AdminID,
		"totalCents": b.TotalCents,
	}
	if _, err := s.Bus.Emit(ctx, events.TopicBookingCreated, b.ID, payload); err != nil {
		s.Logger.Error().Err(err).Str("booking_id", b.ID).Msg("booking_fanout_incomplete")
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) countFailure(err error) {
	if s.Metrics == nil {
		return
	}
	code := "INTERNAL"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	s.Metrics.BookingFailures.WithLabelValues(code).Inc()
}

func (s *Service) countPromo(outcome string) {
	if s.Metrics != nil {
		s.Metrics.PromoDecisions.WithLabelValues(outcome).Inc()
	}
}

// promoError maps the promo sentinel errors onto the API error taxonomy.
func promoError(err error) *common.AppError {
	switch {
	case errors.Is(err, promo.ErrInvalidCode):
		return common.NewAppError("INVALID_CODE", "promo code is not valid", http.StatusUnprocessableEntity, err)
	case errors.Is(err, promo.ErrNotYetActive):
		return common.NewAppError("NOT_YET_ACTIVE", "promo code is not active yet", http.StatusUnprocessableEntity, err)
	case errors.Is(err, promo.ErrExpired):
		return common.NewAppError("EXPIRED", "promo code has expired", http.StatusUnprocessableEntity, err)
	case errors.Is(err, promo.ErrUsageLimitReached):
		return common.NewAppError("USAGE_LIMIT_REACHED", "promo code usage limit reached", http.StatusUnprocessableEntity, err)
	case errors.Is(err, promo.ErrPerClientLimitReached):
		return common.NewAppError("PER_CLIENT_LIMIT_REACHED", "promo code already used the maximum number of times", http.StatusUnprocessableEntity, err)
	default:
		return common.NewAppError("INTERNAL", "failed to evaluate promo code", http.StatusInternalServerError, err)
	}
}
