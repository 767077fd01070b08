package providers

import (
	"errors"
	"fmt"
)

// Common errors returned by provider clients.
var (
	// ErrNotFound indicates the provider has no record of the publication.
	ErrNotFound = errors.New("publication not found at provider")

	// ErrProviderUnavailable indicates a network failure or a 5xx from
	// the provider. The reconciler drops the observation and moves on.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates the provider's rate limit was exceeded.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrInvalidResponse indicates the provider answered with a body the
	// client could not parse.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrMalformedDOI indicates the caller supplied an identifier that is
	// not a DOI. Surfaced before any request is made.
	ErrMalformedDOI = errors.New("malformed DOI")
)

// APIError carries the HTTP detail of a failed provider call.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsTransient returns true for failures worth retrying on a later
// refresh: network errors, 5xx responses and rate limiting.
func IsTransient(err error) bool {
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
