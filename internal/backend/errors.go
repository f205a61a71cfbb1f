package backend

import (
	"errors"
	"fmt"
)

// ErrStatusRegression is reported when a fetched payment status moved from a
// terminal state back to a non-terminal one. That transition is a data error
// on the backend side; the client never applies or retries it.
var ErrStatusRegression = errors.New("payment status regressed from a terminal state")

// ValidationError is raised before any network call when the request is
// missing required fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// AuthError maps HTTP 401: the session expired, the flow is aborted.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication required: " + e.Message
}

// PermissionError maps HTTP 403.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Message
}

// NotFoundError maps HTTP 404, usually a misconfigured endpoint.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "endpoint or resource not found: " + e.Path
}

// ServerError maps HTTP 5xx; retry is user-initiated only.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError wraps transport failures where no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network failure: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// GatewayConfigurationError: the backend selected a gateway flow but omitted
// data the flow needs (e.g. the redirect URL). Fatal for the submission and
// never auto-retried, to avoid duplicate payment intents.
type GatewayConfigurationError struct {
	Reason string
}

func (e *GatewayConfigurationError) Error() string {
	return "gateway misconfigured: " + e.Reason
}

// UnknownGatewayError: a callback arrived without recognizable gateway markers.
type UnknownGatewayError struct {
	Query string
}

func (e *UnknownGatewayError) Error() string {
	return "callback has no recognizable gateway markers"
}

// Transient reports whether an error may clear on its own, i.e. whether a
// bounded poll retry is worthwhile. Payment creation never consults this.
func Transient(err error) bool {
	var netErr *NetworkError
	var srvErr *ServerError
	return errors.As(err, &netErr) || errors.As(err, &srvErr)
}

func statusError(statusCode int, path, message string) error {
	switch {
	case statusCode == 401:
		return &AuthError{Message: message}
	case statusCode == 403:
		return &PermissionError{Message: message}
	case statusCode == 404:
		return &NotFoundError{Path: path}
	case statusCode >= 500:
		return &ServerError{StatusCode: statusCode, Message: message}
	default:
		return &ValidationError{Field: "request", Reason: message}
	}
}
