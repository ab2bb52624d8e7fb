package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingContinuationToken is returned when a conditioning provider
	// answers successfully but omits the request identifier header.
	ErrMissingContinuationToken = errors.New("tts: response missing continuation token")

	// ErrProviderNotConfigured is returned when a voice references a platform
	// for which no adapter was constructed (usually a missing API key).
	ErrProviderNotConfigured = errors.New("tts: provider not configured")
)

// ProviderError reports a failed vendor call. Body carries the raw response
// detail for non-success statuses.
type ProviderError struct {
	// Provider is the platform name, e.g. "elevenlabs".
	Provider string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Body is the raw response body, possibly truncated.
	Body string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
	default:
		return e.Provider + ": request failed"
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }
