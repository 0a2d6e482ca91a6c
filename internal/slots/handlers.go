package slots

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brightlens/shootbook/internal/catalog"
	"github.com/brightlens/shootbook/internal/common"
	"github.com/brightlens/shootbook/internal/pricing"
)

// AdminResolver maps a public booking-page slug to the owning admin id.
type AdminResolver interface {
	ResolveAdminSlug(ctx context.Context, slug string) (string, error)
}

// BusyQuerier lists blocked windows for an admin within a time range.
type BusyQuerier interface {
	ListBusyWindows(ctx context.Context, adminID string, from, to time.Time) ([]Busy, error)
}

// Handlers serves the public availability endpoint.
type Handlers struct {
	Admins           AdminResolver
	Catalog          *catalog.Loader
	Busy             BusyQuerier
	Grid             Grid
	DefaultBufferMin int
	Location         *time.Location
}

type slotResponse struct {
	Date       string   `json:"date"`
	BlockMin   int      `json:"blockMin"`
	VisibleMin int      `json:"visibleMin"`
	Slots      []string `json:"slots"`
}

// List returns the available start times for one day and a service selection.
// GET /api/v1/public/{adminSlug}/slots?date=2026-03-14&serviceIds=a,b
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "adminSlug")
	adminID, err := h.Admins.ResolveAdminSlug(ctx, slug)
	if err != nil {
		writeError(w, err)
		return
	}

	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), loc)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD", nil)
		return
	}

	serviceIDs := strings.Split(r.URL.Query().Get("serviceIds"), ",")
	services, err := h.Catalog.LoadForBooking(ctx, adminID, serviceIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	durations := make([]pricing.ServiceDuration, len(services))
	for i, svc := range services {
		durations[i] = pricing.ServiceDuration{
			DurationMin:     svc.DurationMin,
			BufferBeforeMin: svc.BufferBeforeMin,
			BufferAfterMin:  svc.BufferAfterMin,
		}
	}
	window := pricing.ComposeWindow(durations, h.DefaultBufferMin)

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	busy, err := h.Busy.ListBusyWindows(ctx, adminID, from, from.AddDate(0, 0, 1))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load availability", nil)
		return
	}

	starts, err := h.Grid.Available(day, window.BlockMin, busy)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability grid misconfigured", nil)
		return
	}
	out := make([]string, len(starts))
	for i, s := range starts {
		out[i] = s.Format(time.RFC3339)
	}
	common.JSONData(w, http.StatusOK, slotResponse{
		Date:       day.Format("2006-01-02"),
		BlockMin:   window.BlockMin,
		VisibleMin: window.VisibleMin,
		Slots:      out,
	})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
