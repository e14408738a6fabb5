// Package errors holds the error types returned by the bdt SDK.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError is an error envelope returned by the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bdt API error (%d): %s", e.StatusCode, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message string) *APIError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: message}
}

// ErrSessionExpired is returned when the stored token is no longer accepted.
var ErrSessionExpired = stderrors.New("Session expirée, veuillez vous reconnecter")

// ErrNotLoggedIn is returned by calls that need a session when there is none.
var ErrNotLoggedIn = stderrors.New("Vous devez être connecté")

func statusOf(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsAPIError checks if an error is an API error
func IsAPIError(err error) bool {
	return statusOf(err) != 0
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsValidation reports a 400 answer.
func IsValidation(err error) bool {
	return statusOf(err) == http.StatusBadRequest
}

// IsConflict reports a 409 answer.
func IsConflict(err error) bool {
	return statusOf(err) == http.StatusConflict
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// ValidationError is a form rejected on the client before any request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError represents a network-related error
type NetworkError struct {
	Operation string `json:"operation"`
	URL       string `json:"url"`
	Err       error  `json:"error"`
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s to %s: %v", e.Operation, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err comes from the transport rather than the
// server.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return stderrors.As(err, &ne)
}
