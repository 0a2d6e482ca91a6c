package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/brightlens/shootbook/internal/common"
)

type adminStub struct{}

func (adminStub) ResolveAdminSlug(_ context.Context, slug string) (string, error) {
	if slug != "brightlens" {
		return "", common.NotFound("UNKNOWN_ADMIN", "booking page not found")
	}
	return "admin", nil
}

func newTestRouter(store *storeStub) *chi.Mux {
	h := &Handler{
		Svc:      newService(store, nil, nil),
		Admins:   adminStub{},
		Validate: validator.New(),
	}
	r := chi.NewRouter()
	r.Post("/api/v1/public/{adminSlug}/bookings", h.Submit)
	r.Get("/api/v1/public/{adminSlug}/bookings/{bookingID}", h.Get)
	return r
}

func TestSubmitHandlerCreatesBooking(t *testing.T) {
	store := &storeStub{}
	router := newTestRouter(store)

	body := `{
		"serviceIds": ["a", "b"],
		"scheduledAt": "2026-03-14T10:00:00Z",
		"address": "12 Harbor View Dr",
		"realtorName": "Jordan Reyes",
		"realtorEmail": "agent@example.com"
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/brightlens/bookings", strings.NewReader(body))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		Data submitResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "bk-1", out.Data.Booking.ID)
	require.Equal(t, int64(15750), out.Data.Booking.TotalCents)
	require.Len(t, out.Data.Lines, 2)
}

func TestSubmitHandlerMissingFields(t *testing.T) {
	router := newTestRouter(&storeStub{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/brightlens/bookings",
		strings.NewReader(`{"serviceIds": ["a"]}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "MISSING_REQUIRED_FIELD", out.Error.Code)
	require.Contains(t, out.Error.Details.Fields, "realtorEmail")
}

func TestSubmitHandlerUnknownSlug(t *testing.T) {
	router := newTestRouter(&storeStub{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/ghost/bookings", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "UNKNOWN_ADMIN")
}

func TestGetHandlerReturnsBooking(t *testing.T) {
	store := &storeStub{}
	router := newTestRouter(store)

	body := `{
		"serviceIds": ["a"],
		"scheduledAt": "2026-03-14T10:00:00Z",
		"address": "12 Harbor View Dr",
		"realtorName": "Jordan Reyes",
		"realtorEmail": "agent@example.com"
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/brightlens/bookings", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/brightlens/bookings/bk-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
