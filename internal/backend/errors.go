package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned when no usable token is stored. Callers
// skip the operation or ask the user to log in.
var ErrUnauthenticated = errors.New("not logged in")

const (
	genericNetworkMessage = "Network error. Check your connection and try again."
	genericServerMessage  = "Something went wrong. Please try again."
	loginRequiredMessage  = "Please log in to continue."
)

// NetworkError is a transport-level failure: the request never produced an
// HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response. Message is the server's text, if any.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthenticated) match a 401 from the server.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Status == http.StatusUnauthorized
}

// UserMessage renders err as the single string shown to the user.
// Server messages pass through verbatim; everything else gets a generic
// fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if m, ok := err.(interface{ UserMessage() string }); ok {
		return m.UserMessage()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Status == http.StatusUnauthorized {
			return loginRequiredMessage
		}
		return genericServerMessage
	}
	if errors.Is(err, ErrUnauthenticated) {
		return loginRequiredMessage
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return genericNetworkMessage
	}
	return genericServerMessage
}

// Retryable reports whether repeating the same call may succeed.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return false
}
