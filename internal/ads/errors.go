package ads

import (
	"errors"
	"fmt"
)

// Common errors returned by the ADS client.
var (
	// ErrNotFound indicates that a lookup matched no record.
	ErrNotFound = errors.New("not found in ADS")

	// ErrAuthError indicates a missing or rejected API token.
	ErrAuthError = errors.New("ADS authentication error")

	// ErrRateLimited indicates the daily query quota has been used up.
	ErrRateLimited = errors.New("ADS rate limit exceeded")

	// ErrNotConfigured indicates that no API token is available.
	ErrNotConfigured = errors.New("ADS API token not configured")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from ADS")
)

// APIError represents an HTTP error from the ADS API.
type APIError struct {
	StatusCode int
	Message    string
	Query      string
}

func (e *APIError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("ADS API error (status %d): %s (query: %s)", e.StatusCode, e.Message, e.Query)
	}
	return fmt.Sprintf("ADS API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) || errors.Is(err, ErrNotConfigured) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
