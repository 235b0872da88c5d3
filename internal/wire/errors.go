package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// Upstream error codes carried in the errors array of API responses.
const (
	// CodeInvalidCredentials means the auth cookies are no longer valid.
	CodeInvalidCredentials = 32

	// CodeLoggedOut means the session was explicitly logged out.
	CodeLoggedOut = 64

	// CodeRateLimitExceeded means the caller must wait until the window
	// resets before issuing further requests.
	CodeRateLimitExceeded = 88

	// CodeOverCapacity is a transient upstream overload signal.
	CodeOverCapacity = 130

	// CodeSessionNotFound means the push-pipeline session id has been
	// invalidated server-side.
	CodeSessionNotFound = 392
)

// ErrorItem is one element of an upstream errors array.
type ErrorItem struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the error-bearing shell every JSON response can carry.
type ErrorEnvelope struct {
	Errors []ErrorItem `json:"errors,omitempty"`
}

// APIError is a typed upstream failure. ResetAt is populated for rate-limit
// errors from the response's rate-limit headers.
type APIError struct {
	Code    int
	Message string

	// ResetAt is when a rate-limited caller may retry. Zero unless the
	// code is CodeRateLimitExceeded and the server supplied a reset.
	ResetAt time.Time
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

// NewAPIError builds an APIError from one upstream error item.
func NewAPIError(item ErrorItem) *APIError {
	return &APIError{
		Code:    item.Code,
		Message: item.Message,
	}
}

// IsReauthRequired reports whether err means the stored credentials are dead
// and the host must force a re-login. Never retried locally.
func IsReauthRequired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == CodeInvalidCredentials ||
		apiErr.Code == CodeLoggedOut
}

// RateLimitReset extracts the retry deadline from a rate-limit error. The
// second return is false if err is not a rate-limit error.
func RateLimitReset(err error) (time.Time, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return time.Time{}, false
	}
	if apiErr.Code != CodeRateLimitExceeded {
		return time.Time{}, false
	}

	return apiErr.ResetAt, true
}

// IsOverCapacity reports whether err is the transient overload signal.
func IsOverCapacity(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Code == CodeOverCapacity
}

// IsSessionNotFound reports whether err invalidates the push session.
func IsSessionNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Code == CodeSessionNotFound
}

// IsOffline reports whether err looks like plain connectivity loss rather
// than a genuine fault. Offline errors are retried silently and kept out of
// telemetry.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {

		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Some transports flatten the underlying cause into the message.
	msg := err.Error()

	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}
