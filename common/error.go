package common

import (
	"errors"
	"fmt"
	"net/http"
)

type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// ToAPIError maps a domain error onto the HTTP surface. Errors that are
// already APIErrors pass through untouched.
func ToAPIError(err error, what string) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return Errf(http.StatusNotFound, "%s not found", what)
	case errors.Is(err, ErrInvalidState):
		return Errf(http.StatusConflict, "%s: %v", what, err)
	case errors.Is(err, ErrInvalidPayload):
		return Errf(http.StatusBadRequest, "%s: %v", what, err)
	case isTimeout(err):
		return Errf(http.StatusRequestTimeout, "request timed out")
	case errors.Is(err, ErrStorage):
		return Errf(http.StatusServiceUnavailable, "%s: storage unavailable", what)
	default:
		return Errf(http.StatusInternalServerError, "%s failed", what)
	}
}
