package llm

import (
	"errors"
	"fmt"
)

// ErrorKind is the taxonomy surfaced to Agent Loop callers (§4.1, §7).
type ErrorKind string

const (
	// KindInvalidRequest maps to HTTP 400 from the provider.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindAuthentication maps to HTTP 401/403 from the provider.
	KindAuthentication ErrorKind = "authentication"
	// KindRateLimited maps to HTTP 429. RetryAfterSeconds holds the value
	// passed to ClassifyStatus; the adapters in this package do not read
	// the retry-after header and pass nil, so it is unset for them.
	KindRateLimited ErrorKind = "rate_limited"
	// KindAPIError covers any other non-2xx provider response.
	KindAPIError ErrorKind = "api_error"
	// KindNetwork covers transport-level failures (dial, timeout, reset).
	KindNetwork ErrorKind = "network"
)

// ProviderError is the structured error every adapter returns instead of a
// raw transport/SDK error.
type ProviderError struct {
	Kind              ErrorKind
	Provider          string
	Status            int
	Message           string
	RetryAfterSeconds *int
	Cause             error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: [%s] %s", e.Provider, e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: [%s] %s", e.Provider, e.Kind, e.Cause.Error())
	}
	return fmt.Sprintf("%s: [%s]", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewNetworkError wraps a transport failure (dial/timeout/reset).
func NewNetworkError(provider string, cause error) *ProviderError {
	return &ProviderError{Kind: KindNetwork, Provider: provider, Cause: cause, Message: cause.Error()}
}

// ClassifyStatus maps an HTTP status code and optional retry-after seconds
// to a ProviderError, following the table in §4.1.
func ClassifyStatus(provider string, status int, message string, retryAfterSeconds *int) *ProviderError {
	pe := &ProviderError{Provider: provider, Status: status, Message: message}
	switch {
	case status == 400:
		pe.Kind = KindInvalidRequest
	case status == 401 || status == 403:
		pe.Kind = KindAuthentication
	case status == 429:
		pe.Kind = KindRateLimited
		pe.RetryAfterSeconds = retryAfterSeconds
	default:
		pe.Kind = KindAPIError
	}
	return pe
}

// IsKind reports whether err is a *ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
