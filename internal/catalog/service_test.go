package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brightlens/shootbook/internal/common"
)

type stubQueries struct {
	services []Service
	gotIDs   []string
	calls    int
}

func (s *stubQueries) ListServicesForBooking(ctx context.Context, adminID string, ids []string) ([]Service, error) {
	s.calls++
	s.gotIDs = ids
	out := make([]Service, 0, len(s.services))
	for _, svc := range s.services {
		for _, id := range ids {
			if svc.ID == id {
				out = append(out, svc)
			}
		}
	}
	return out, nil
}

func TestLoadForBookingDedupesAndSorts(t *testing.T) {
	q := &stubQueries{services: []Service{
		{ID: "a", Name: "Photo", PriceCents: 10000, Active: true},
		{ID: "b", Name: "Video", PriceCents: 5000, Active: true},
	}}
	loader := &Loader{Q: q}
	services, err := loader.LoadForBooking(context.Background(), "admin", []string{"b", "a", " b ", ""})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, q.gotIDs)
	require.Len(t, services, 2)
}

func TestLoadForBookingNoneResolved(t *testing.T) {
	loader := &Loader{Q: &stubQueries{}}
	_, err := loader.LoadForBooking(context.Background(), "admin", []string{"ghost"})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NO_VALID_SERVICES", appErr.Code)
}

func TestLoadForBookingEmptySelection(t *testing.T) {
	loader := &Loader{Q: &stubQueries{}}
	_, err := loader.LoadForBooking(context.Background(), "admin", []string{"", "  "})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NO_VALID_SERVICES", appErr.Code)
}

func TestLoadForBookingNilCacheIsFine(t *testing.T) {
	q := &stubQueries{services: []Service{{ID: "a", PriceCents: 100, Active: true}}}
	loader := &Loader{Q: q}
	_, err := loader.LoadForBooking(context.Background(), "admin", []string{"a"})
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)
}
