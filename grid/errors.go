package grid

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrControlsDisabled is returned by page and page-size changes while the
// grid is in the load-error state. Call Retry first.
var ErrControlsDisabled = errors.New("pagination is disabled until the initial load succeeds")

// ErrInvalidPageSize is returned when a page size is not one of the
// configured options.
var ErrInvalidPageSize = errors.New("page size is not an allowed option")

// ErrInvalidMode is returned by SetMode for anything but server or client.
var ErrInvalidMode = errors.New("unknown grid mode")

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("grid controller is closed")

// ValidationError reports filter criteria whose bounds are out of order.
// Fields maps column key to a human-readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "invalid filters: " + strings.Join(parts, "; ")
}

// APIError is a transport or server failure normalized for display.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// AsAPIError normalizes err. Errors that are not already an *APIError are
// reported as status 500 carrying the error text.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	msg := err.Error()
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	return &APIError{StatusCode: http.StatusInternalServerError, Message: msg}
}
