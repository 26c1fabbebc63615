package web

// errors.go provides unified error responses for the web layer.
//
// Every failure is answered as JSON {"message": "..."}, the shape the
// collection client reads its error text from. The technical error is
// logged server-side with the request ID; 5xx responses never echo it.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/gridview/internal/logging"
	"github.com/JonMunkholm/gridview/internal/store"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// respondError maps err to a status code, logs it, and writes the response.
// badRequest marks errors caused by the request itself.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, badRequest bool) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		message = "Record not found"
	case errors.Is(err, ErrTooManyExports):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case badRequest:
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		message = "Request timed out"
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeError(w, r, status, message)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Message: message})
}
