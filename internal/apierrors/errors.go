package apierrors

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when the server rejects the bearer
// credential. The HTTP client clears the persisted token before
// returning it.
var ErrUnauthenticated = errors.New("authentication rejected")

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("resource not found")

// APIError is a server-reported business error: the request reached
// the server and was rejected with a payload.
type APIError struct {
	StatusCode int
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// NewAPIError creates an APIError for the given status and message.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// TransportError is a network-level failure: no usable response was
// received. The in-memory state of the caller must be left unchanged.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message returns the server-supplied message from err when it is an
// APIError, otherwise the fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
