package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-filestore/pkg/filestore"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch filestore.KindOf(err) {
	case filestore.KindValidation:
		return http.StatusBadRequest
	case filestore.KindNotFound:
		return http.StatusNotFound
	case filestore.KindUnauthorized:
		return http.StatusForbidden
	case filestore.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err with its mapped status. Internal failures
// are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	kind := filestore.KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
		msg = "internal storage error"
	} else if status == http.StatusRequestEntityTooLarge {
		msg = "request body too large"
		kind = ""
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg, Code: string(kind)})
}
