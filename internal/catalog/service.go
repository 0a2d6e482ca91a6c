package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/brightlens/shootbook/internal/common"
)

// TaxRate is a tax linked to a service, expressed in basis points.
type TaxRate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	RateBps int32  `json:"rateBps"`
}

// Service is one bookable shoot offering in an admin's catalog: photo,
// video, floorplan and similar packages with their scheduling buffers and
// linked taxes.
type Service struct {
	ID              string    `json:"id"`
	AdminID         string    `json:"adminId"`
	Name            string    `json:"name"`
	PriceCents      int64     `json:"priceCents"`
	DurationMin     int       `json:"durationMin"`
	BufferBeforeMin int       `json:"bufferBeforeMin"`
	BufferAfterMin  int       `json:"bufferAfterMin"`
	Active          bool      `json:"active"`
	Taxes           []TaxRate `json:"taxes"`
}

// Querier captures the database reads required by the loader. Rows come back
// ordered by service id ascending so pricing iteration order is stable.
type Querier interface {
	ListServicesForBooking(ctx context.Context, adminID string, ids []string) ([]Service, error)
}

// Loader resolves admin-scoped services for a booking request, with a Redis
// JSON cache in front of Postgres.
type Loader struct {
	Q     Querier
	Cache *Cache
}

// LoadForBooking returns the active services matching the requested ids. IDs
// are de-duplicated and the result is pinned to id-ascending order. When none
// of the requested ids resolve the booking cannot proceed.
func (l *Loader) LoadForBooking(ctx context.Context, adminID string, serviceIDs []string) ([]Service, error) {
	if l == nil || l.Q == nil {
		return nil, errors.New("catalog loader not configured")
	}
	ids := normalizeIDs(serviceIDs)
	if len(ids) == 0 {
		return nil, common.BadRequest("NO_VALID_SERVICES", "no services selected")
	}

	key := cacheKey(adminID, ids)
	var services []Service
	if hit, err := l.Cache.GetJSON(ctx, key, &services); err == nil && hit && len(services) > 0 {
		return services, nil
	}

	services, err := l.Q.ListServicesForBooking(ctx, adminID, ids)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, common.BadRequest("NO_VALID_SERVICES", "none of the requested services are available")
	}
	_ = l.Cache.SetJSON(ctx, key, services)
	return services, nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

func cacheKey(adminID string, ids []string) string {
	return "catalog:booking:" + adminID + ":" + strings.Join(ids, ",")
}
