package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/brightlens/shootbook/internal/common"
)

// AdminResolver maps a public booking-page slug to the owning admin id.
type AdminResolver interface {
	ResolveAdminSlug(ctx context.Context, slug string) (string, error)
}

// Handler serves the public booking endpoints.
type Handler struct {
	Svc      *Service
	Admins   AdminResolver
	Validate *validator.Validate
}

type submitResponse struct {
	Booking Booking `json:"booking"`
	Lines   []Line  `json:"lines"`
}

// Submit handles POST /api/v1/public/{adminSlug}/bookings.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "booking service not configured", nil)
		return
	}
	adminID, ok := h.resolveAdmin(w, r)
	if !ok {
		return
	}
	var payload SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validateInput(payload); err != nil {
		h.writeError(w, err)
		return
	}
	created, lines, err := h.Svc.Submit(r.Context(), adminID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, submitResponse{Booking: created, Lines: lines})
}

// Get handles GET /api/v1/public/{adminSlug}/bookings/{bookingID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "booking service not configured", nil)
		return
	}
	adminID, ok := h.resolveAdmin(w, r)
	if !ok {
		return
	}
	bookingID := chi.URLParam(r, "bookingID")
	b, lines, err := h.Svc.Get(r.Context(), adminID, bookingID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, submitResponse{Booking: b, Lines: lines})
}

func (h *Handler) resolveAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	slug := chi.URLParam(r, "adminSlug")
	adminID, err := h.Admins.ResolveAdminSlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return "", false
	}
	return adminID, true
}

// validateInput maps struct-tag failures onto the MISSING_REQUIRED_FIELD code
// with the offending JSON field names as details.
func (h *Handler) validateInput(in SubmitInput) error {
	if h.Validate == nil {
		return nil
	}
	err := h.Validate.Struct(in)
	if err == nil {
		return nil
	}
	var invalid []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			invalid = append(invalid, jsonField(fe.Field()))
		}
	}
	appErr := common.NewAppError("MISSING_REQUIRED_FIELD", "required fields are missing or invalid", http.StatusBadRequest, err)
	appErr.Details = map[string]any{"fields": invalid}
	return appErr
}

func jsonField(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
