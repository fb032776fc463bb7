package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the provider is configured but the
	// hourly quota is exhausted. Callers may retry later.
	ErrRateLimited = errors.New("API rate limit reached. Please try again later")

	// ErrInvalidLocation is returned when nothing is left of the location after
	// sanitizing.
	ErrInvalidLocation = errors.New("invalid location")
)

// ProviderError reports a failed exchange with the weather provider. A zero
// StatusCode means no HTTP response was obtained (transport failure or open
// circuit breaker).
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("weather provider error (%s): %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("weather provider error (%s): status %d", e.Endpoint, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a provider payload that does not match the expected
// contract.
type ParseError struct {
	Endpoint string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("weather provider payload (%s)", e.Endpoint)
	if e.Field != "" {
		msg += ": missing or invalid " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
