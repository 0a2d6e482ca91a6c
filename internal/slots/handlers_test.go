package slots

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/brightlens/shootbook/internal/catalog"
	"github.com/brightlens/shootbook/internal/common"
)

type adminStub struct {
	err error
}

func (s adminStub) ResolveAdminSlug(ctx context.Context, slug string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if slug == "brightlens" {
		return "admin-1", nil
	}
	return "", common.NotFound("UNKNOWN_ADMIN", "booking page not found")
}

type catalogStub struct {
	services []catalog.Service
}

func (s catalogStub) ListServicesForBooking(ctx context.Context, adminID string, ids []string) ([]catalog.Service, error) {
	return s.services, nil
}

type busyStub struct {
	busy []Busy
}

func (s busyStub) ListBusyWindows(ctx context.Context, adminID string, from, to time.Time) ([]Busy, error) {
	return s.busy, nil
}

func newTestRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/v1/public/{adminSlug}/slots", h.List)
	return r
}

func TestListReturnsAvailableStarts(t *testing.T) {
	h := Handlers{
		Admins: adminStub{},
		Catalog: &catalog.Loader{Q: catalogStub{services: []catalog.Service{
			{ID: "a", AdminID: "admin-1", Name: "Photos", PriceCents: 10000, DurationMin: 60, BufferAfterMin: 15, Active: true},
		}}},
		Busy:             busyStub{},
		Grid:             Grid{DayStart: "08:00", DayEnd: "12:00", StepMin: 60},
		DefaultBufferMin: 15,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/brightlens/slots?date=2026-03-14&serviceIds=a", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data slotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "2026-03-14", out.Data.Date)
	require.Equal(t, 60, out.Data.VisibleMin)
	// 60 duration + 15 buffer after + 15 admin default
	require.Equal(t, 90, out.Data.BlockMin)
	// 90min block on an 08:00-12:00 hourly grid fits at 08:00, 09:00, 10:00
	require.Len(t, out.Data.Slots, 3)
}

func TestListUnknownSlug(t *testing.T) {
	h := Handlers{Admins: adminStub{}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/nobody/slots?date=2026-03-14&serviceIds=a", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "UNKNOWN_ADMIN")
}

func TestListResolverOutageIsNot404(t *testing.T) {
	h := Handlers{Admins: adminStub{err: errors.New("connection refused")}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/brightlens/slots?date=2026-03-14&serviceIds=a", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL")
}

func TestListRejectsBadDate(t *testing.T) {
	h := Handlers{Admins: adminStub{}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/brightlens/slots?date=14-03-2026&serviceIds=a", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_DATE")
}

func TestListNoValidServices(t *testing.T) {
	h := Handlers{
		Admins:  adminStub{},
		Catalog: &catalog.Loader{Q: catalogStub{}},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/brightlens/slots?date=2026-03-14&serviceIds=zzz", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "NO_VALID_SERVICES")
}
