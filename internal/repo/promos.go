package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlens/shootbook/internal/promo"
)

// Promos reads promo codes and their usage counters.
type Promos struct {
	Pool *pgxpool.Pool
}

// GetPromoByCode loads the promo rule for the admin. The lookup is
// case-insensitive on the code; pgx.ErrNoRows propagates for unknown codes.
func (r Promos) GetPromoByCode(ctx context.Context, adminID, code string) (promo.Rule, error) {
	const q = `
		SELECT id, code, kind, amount_cents, rate_bps, starts_at, ends_at,
		       max_uses_total, max_uses_per_realtor, service_ids, active
		FROM promos
		WHERE admin_id = $1 AND lower(code) = lower($2)
	`
	var rule promo.Rule
	err := r.Pool.QueryRow(ctx, q, adminID, code).Scan(
		&rule.ID, &rule.Code, &rule.Kind, &rule.AmountCents, &rule.RateBps,
		&rule.StartsAt, &rule.EndsAt, &rule.MaxUsesTotal, &rule.MaxUsesPerRealtor,
		&rule.ServiceIDs, &rule.Active,
	)
	if err != nil {
		return promo.Rule{}, err
	}
	return rule, nil
}

// CountPromoUsage counts confirmed bookings that consumed the promo.
func (r Promos) CountPromoUsage(ctx context.Context, promoID string) (int64, error) {
	const q = `SELECT COUNT(*) FROM promo_usages WHERE promo_id = $1`
	var n int64
	if err := r.Pool.QueryRow(ctx, q, promoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count promo usage: %w", err)
	}
	return n, nil
}

// CountPromoUsageByRealtor counts this realtor's confirmed uses of the promo.
func (r Promos) CountPromoUsageByRealtor(ctx context.Context, promoID, realtorEmail string) (int64, error) {
	const q = `
		SELECT COUNT(*) FROM promo_usages
		WHERE promo_id = $1 AND lower(realtor_email) = lower($2)
	`
	var n int64
	if err := r.Pool.QueryRow(ctx, q, promoID, realtorEmail).Scan(&n); err != nil {
		return 0, fmt.Errorf("count promo usage by realtor: %w", err)
	}
	return n, nil
}
