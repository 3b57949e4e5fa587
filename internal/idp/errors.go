package idp

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProviderUnavailable matches every ProviderUnavailableError.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrProviderError matches every ProviderError.
	ErrProviderError = errors.New("identity provider error")
	// ErrIdentityNotFound is matched by a ProviderError with status 404.
	ErrIdentityNotFound = errors.New("identity not found at provider")
	// ErrUnsupported is returned when the provider does not support an operation.
	ErrUnsupported = errors.New("operation not supported by identity provider")
)

// ProviderUnavailableError wraps network failures, timeouts and gateway errors.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s: identity provider unavailable: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *ProviderUnavailableError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// ProviderError is a non-2xx answer that is not an availability problem.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: identity provider answered %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap exposes ErrProviderError and, for 404, ErrIdentityNotFound.
func (e *ProviderError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{ErrProviderError, ErrIdentityNotFound}
	}

	return []error{ErrProviderError}
}

// unavailableStatus reports status codes that mean the provider is down.
func unavailableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
