package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tankkwon/delivery-app/internal/core"
)

var (
	errMalformedBody = errors.New("malformed request body")
	errNotFound      = errors.New("record not found")
)

// APIError is the body of every error response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes
const (
	CodeValidation  = "validation_error"
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal_error"
	CodeRateLimited = "rate_limited"
)

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, APIError{Error: msg, Code: code})
}

// statusFor maps domain errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPlatform),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDeliveryCount),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrMemoTooLong):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, errMalformedBody), errors.Is(err, errBadQuery):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeErr writes err with the status statusFor chooses. Internal errors are
// not echoed to the client.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteError(w, status, code, msg)
}
