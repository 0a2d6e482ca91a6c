package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlens/shootbook/internal/booking"
	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/notify"
	"github.com/brightlens/shootbook/internal/slots"
)

// Bookings persists bookings and their lines.
type Bookings struct {
	Pool *pgxpool.Pool
}

// CreateBooking writes the booking, its lines and the promo usage row in one
// transaction. The admin's calendar is serialized with an advisory lock so the
// slot conflict check and the insert are atomic; promo usage caps are
// re-checked under the same lock.
func (r Bookings) CreateBooking(ctx context.Context, b booking.Booking, lines []booking.Line) (booking.Booking, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.AdminID); err != nil {
		return booking.Booking{}, fmt.Errorf("lock admin calendar: %w", err)
	}

	blockEnd := b.ScheduledAt.Add(time.Duration(b.BlockMin) * time.Minute)
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE admin_id = $1 AND status = 'confirmed'
			  AND scheduled_at < $3
			  AND scheduled_at + make_interval(mins => block_min) > $2
		)`, b.AdminID, b.ScheduledAt, blockEnd).Scan(&taken)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return booking.Booking{}, common.NewAppError("SLOT_TAKEN", "the requested time slot is no longer available", http.StatusConflict, nil)
	}

	if b.PromoID != nil {
		if err := r.recheckPromoCaps(ctx, tx, *b.PromoID, b.RealtorEmail); err != nil {
			return booking.Booking{}, err
		}
	}

	b.ID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, admin_id, status, scheduled_at, block_min, visible_min,
			address, realtor_name, realtor_email, realtor_phone, notes,
			promo_id, promo_code, subtotal_cents, discount_cents, tax_cents,
			total_cents, currency, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		b.ID, b.AdminID, b.Status, b.ScheduledAt, b.BlockMin, b.VisibleMin,
		b.Address, b.RealtorName, b.RealtorEmail, b.RealtorPhone, b.Notes,
		b.PromoID, b.PromoCode, b.SubtotalCents, b.DiscountCents, b.TaxCents,
		b.TotalCents, b.Currency, b.CreatedAt,
	)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	for _, line := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_lines (
				booking_id, service_id, service_name, price_cents,
				discount_cents, tax_cents, duration_min
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			b.ID, line.ServiceID, line.ServiceName, line.PriceCents,
			line.DiscountCents, line.TaxCents, line.DurationMin,
		)
		if err != nil {
			return booking.Booking{}, fmt.Errorf("insert booking line: %w", err)
		}
	}

	if b.PromoID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO promo_usages (promo_id, booking_id, realtor_email, used_at)
			VALUES ($1, $2, $3, $4)`,
			*b.PromoID, b.ID, b.RealtorEmail, b.CreatedAt,
		)
		if err != nil {
			return booking.Booking{}, fmt.Errorf("insert promo usage: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Booking{}, fmt.Errorf("commit booking: %w", err)
	}
	return b, nil
}

// recheckPromoCaps re-validates the usage limits inside the transaction so
// two concurrent submissions cannot both consume the last use.
func (r Bookings) recheckPromoCaps(ctx context.Context, tx pgx.Tx, promoID, realtorEmail string) error {
	var maxTotal, maxPerRealtor *int32
	var usedTotal, usedByRealtor int64
	err := tx.QueryRow(ctx, `
		SELECT p.max_uses_total, p.max_uses_per_realtor,
		       (SELECT COUNT(*) FROM promo_usages u WHERE u.promo_id = p.id),
		       (SELECT COUNT(*) FROM promo_usages u
		        WHERE u.promo_id = p.id AND lower(u.realtor_email) = lower($2))
		FROM promos p WHERE p.id = $1`,
		promoID, realtorEmail).Scan(&maxTotal, &maxPerRealtor, &usedTotal, &usedByRealtor)
	if err != nil {
		return fmt.Errorf("recheck promo caps: %w", err)
	}
	if maxTotal != nil && usedTotal >= int64(*maxTotal) {
		return common.Unprocessable("USAGE_LIMIT_REACHED", "promo code usage limit reached")
	}
	if maxPerRealtor != nil && usedByRealtor >= int64(*maxPerRealtor) {
		return common.Unprocessable("PER_CLIENT_LIMIT_REACHED", "promo code already used the maximum number of times")
	}
	return nil
}

// GetBooking loads one booking with its lines, scoped to the admin.
func (r Bookings) GetBooking(ctx context.Context, adminID, bookingID string) (booking.Booking, []booking.Line, error) {
	var b booking.Booking
	err := r.Pool.QueryRow(ctx, `
		SELECT id, admin_id, status, scheduled_at, block_min, visible_min,
		       address, realtor_name, realtor_email, realtor_phone, notes,
		       promo_id, promo_code, subtotal_cents, discount_cents, tax_cents,
		       total_cents, currency, created_at
		FROM bookings WHERE id = $1 AND admin_id = $2`,
		bookingID, adminID).Scan(
		&b.ID, &b.AdminID, &b.Status, &b.ScheduledAt, &b.BlockMin, &b.VisibleMin,
		&b.Address, &b.RealtorName, &b.RealtorEmail, &b.RealtorPhone, &b.Notes,
		&b.PromoID, &b.PromoCode, &b.SubtotalCents, &b.DiscountCents, &b.TaxCents,
		&b.TotalCents, &b.Currency, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, nil, common.NewAppError("NOT_FOUND", "booking not found", http.StatusNotFound, err)
		}
		return booking.Booking{}, nil, fmt.Errorf("get booking: %w", err)
	}

	rows, err := r.Pool.Query(ctx, `
		SELECT service_id, service_name, price_cents, discount_cents, tax_cents, duration_min
		FROM booking_lines WHERE booking_id = $1 ORDER BY service_id ASC`, bookingID)
	if err != nil {
		return booking.Booking{}, nil, fmt.Errorf("get booking lines: %w", err)
	}
	defer rows.Close()

	var lines []booking.Line
	for rows.Next() {
		var l booking.Line
		if err := rows.Scan(&l.ServiceID, &l.ServiceName, &l.PriceCents, &l.DiscountCents, &l.TaxCents, &l.DurationMin); err != nil {
			return booking.Booking{}, nil, fmt.Errorf("scan booking line: %w", err)
		}
		lines = append(lines, l)
	}
	return b, lines, rows.Err()
}

// ListBusyWindows returns the blocked calendar windows overlapping the range.
func (r Bookings) ListBusyWindows(ctx context.Context, adminID string, from, to time.Time) ([]slots.Busy, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT scheduled_at, block_min FROM bookings
		WHERE admin_id = $1 AND status = 'confirmed'
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => block_min) > $2
		ORDER BY scheduled_at ASC`, adminID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list busy windows: %w", err)
	}
	defer rows.Close()

	var out []slots.Busy
	for rows.Next() {
		var start time.Time
		var blockMin int
		if err := rows.Scan(&start, &blockMin); err != nil {
			return nil, fmt.Errorf("scan busy window: %w", err)
		}
		out = append(out, slots.Busy{Start: start, End: start.Add(time.Duration(blockMin) * time.Minute)})
	}
	return out, rows.Err()
}

// GetBookingForSideEffects loads the delivery view used by the worker.
func (r Bookings) GetBookingForSideEffects(ctx context.Context, bookingID string) (notify.BookingDetails, error) {
	var d notify.BookingDetails
	err := r.Pool.QueryRow(ctx, `
		SELECT b.id, b.admin_id, b.realtor_email, b.realtor_name, b.realtor_phone,
		       b.address, b.scheduled_at, b.visible_min, b.total_cents, b.currency, b.status,
		       COALESCE(array_agg(l.service_name ORDER BY l.service_id)
		                FILTER (WHERE l.service_name IS NOT NULL), '{}')
		FROM bookings b
		LEFT JOIN booking_lines l ON l.booking_id = b.id
		WHERE b.id = $1
		GROUP BY b.id`, bookingID).Scan(
		&d.ID, &d.AdminID, &d.RealtorEmail, &d.RealtorName, &d.RealtorPhone,
		&d.Address, &d.ScheduledAt, &d.VisibleMin, &d.TotalCents, &d.Currency, &d.Status,
		&d.ServiceNames,
	)
	if err != nil {
		return notify.BookingDetails{}, fmt.Errorf("get booking for side effects: %w", err)
	}
	return d, nil
}
