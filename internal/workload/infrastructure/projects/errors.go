package projects

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("projects api unavailable: circuit open")

// UpstreamError is a non-2xx response from the projects API.
type UpstreamError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("projects api %s %s failed: status=%d body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying: 429 and 5xx.
func (e *UpstreamError) Retryable() bool {
	return isRetryableStatus(e.StatusCode)
}

// Unauthorized reports a rejected credential.
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AuthError means no access token could be obtained.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("projects api auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether err is fatal for a whole sync: no token,
// or the upstream rejected the token.
func IsAuthFailure(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var upErr *UpstreamError
	return errors.As(err, &upErr) && upErr.Unauthorized()
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
