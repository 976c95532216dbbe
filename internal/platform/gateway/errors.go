package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned by operations that need a stored session.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrExpiredToken is returned by SetAuth when the token is a JWT whose exp
// has already passed.
var ErrExpiredToken = errors.New("token already expired")

// ValidationError is raised before any network call when caller input is
// rejected locally.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WrapValidation marks err as a validation failure on field.
func WrapValidation(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// ConnectivityError means the request could not complete: DNS, refused
// connection, timeout, or a body that could not be read.
type ConnectivityError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not reach server: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RequestError means the server answered with a non-success status.
// Message is the body's message field when present, else the status text.
type RequestError struct {
	Status  int
	Message string
	Body    string
}

func (e *RequestError) Error() string {
	return e.Message
}

// IsNotFound reports whether the server answered 404.
func (e *RequestError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// IsUnauthorized reports whether the server rejected the credentials.
func (e *RequestError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConnectivity reports whether err is, or wraps, a *ConnectivityError.
func IsConnectivity(err error) bool {
	var c *ConnectivityError
	return errors.As(err, &c)
}

// IsRejection reports whether err is, or wraps, a *RequestError.
func IsRejection(err error) bool {
	var r *RequestError
	return errors.As(err, &r)
}

// Kind names the error class for user-facing messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsConnectivity(err):
		return "connectivity"
	case IsRejection(err):
		return "rejected"
	default:
		return "internal"
	}
}
