package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlens/shootbook/internal/catalog"
	"github.com/brightlens/shootbook/internal/common"
)

// Services reads the bookable catalog from Postgres.
type Services struct {
	Pool *pgxpool.Pool
}

// ListServicesForBooking returns the active services matching ids for the
// admin, ordered by id ascending. Tax rates come back aggregated per service.
func (r Services) ListServicesForBooking(ctx context.Context, adminID string, ids []string) ([]catalog.Service, error) {
	const q = `
		SELECT s.id, s.admin_id, s.name, s.price_cents, s.duration_min,
		       s.buffer_before_min, s.buffer_after_min, s.active,
		       COALESCE(json_agg(json_build_object(
		           'id', t.id, 'name', t.name, 'rateBps', t.rate_bps
		       ) ORDER BY t.id) FILTER (WHERE t.id IS NOT NULL), '[]') AS taxes
		FROM services s
		LEFT JOIN service_taxes st ON st.service_id = s.id
		LEFT JOIN tax_rates t ON t.id = st.tax_rate_id
		WHERE s.admin_id = $1 AND s.id = ANY($2) AND s.active
		GROUP BY s.id
		ORDER BY s.id ASC
	`
	rows, err := r.Pool.Query(ctx, q, adminID, ids)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []catalog.Service
	for rows.Next() {
		var svc catalog.Service
		var taxes []catalog.TaxRate
		if err := rows.Scan(
			&svc.ID, &svc.AdminID, &svc.Name, &svc.PriceCents, &svc.DurationMin,
			&svc.BufferBeforeMin, &svc.BufferAfterMin, &svc.Active, &taxes,
		); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.Taxes = taxes
		out = append(out, svc)
	}
	return out, rows.Err()
}

// ResolveAdminSlug maps a public booking-page slug onto the admin id. Only a
// genuinely unknown slug yields UNKNOWN_ADMIN; infrastructure failures keep
// their cause so handlers surface them as 500s.
func (r Services) ResolveAdminSlug(ctx context.Context, slug string) (string, error) {
	const q = `SELECT id FROM admins WHERE booking_slug = $1 AND active`
	var id string
	if err := r.Pool.QueryRow(ctx, q, slug).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NewAppError("UNKNOWN_ADMIN", "booking page not found", http.StatusNotFound, err)
		}
		return "", fmt.Errorf("resolve admin slug %q: %w", slug, err)
	}
	return id, nil
}
