package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProvider is returned for unknown provider names.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrNoAPIKey is returned when a provider requires an API key and none
	// was configured.
	ErrNoAPIKey = errors.New("API key not configured")
)

// APIError is an HTTP-level failure from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// NewAPIError creates an APIError.
func NewAPIError(provider string, status int, body string) *APIError {
	return &APIError{Provider: provider, StatusCode: status, Body: body}
}

// WrapError annotates an error with the provider name.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", provider, err)
}
