package common

import (
	"errors"
	"net/http"
)

// AppError is the error currency of the booking API: a machine-readable code
// from the public taxonomy (SLOT_TAKEN, NO_VALID_SERVICES, EXPIRED, ...), the
// HTTP status it maps to, and an optional wrapped cause. Details carries
// structured extras such as the field list on validation failures.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError builds an AppError with an explicit status and cause.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest is a 400 with a taxonomy code, for malformed or unusable input.
func BadRequest(code, message string) *AppError {
	return NewAppError(code, message, http.StatusBadRequest, nil)
}

// NotFound is a 404 with a taxonomy code.
func NotFound(code, message string) *AppError {
	return NewAppError(code, message, http.StatusNotFound, nil)
}

// Unprocessable is a 422 with a taxonomy code, used for promo rejections.
func Unprocessable(code, message string) *AppError {
	return NewAppError(code, message, http.StatusUnprocessableEntity, nil)
}

// IsAppError reports whether err carries an AppError anywhere in its chain.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
