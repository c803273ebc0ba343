package llm

import (
	"context"
	"net/http"
	"time"
)

// Adapter is the single contract every provider-specific wire mapping
// implements: complete(CanonicalRequest) -> CanonicalResponse | ProviderError.
type Adapter interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// newHTTPClient returns an http.Client with the §4.1 floor timeout. Each
// adapter owns exactly one instance.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: HTTPTimeout * time.Second}
}

// isRetryableStatus reports whether a response with this status (429 or
// any 5xx) is worth retrying at the base-provider level. No adapter in
// this package retries, and the Agent Loop never retries.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
