// Package llm provides a chat completion client for OpenAI-compatible
// endpoints, OpenRouter by default.
//
// Narration uses it as the openrouter provider and translation uses it as an
// optional chain entry. Complete returns free text; CompleteJSON requests a JSON
// object and HealthCheck pings the configured model.
//
// # Errors
//
// Failures are tagged with services markers: HTTP 400/401/403/404/422 become
// services.ErrProviderRejected, anything else (429, 5xx, network errors, empty
// content) becomes services.ErrProviderUnavailable. Status errors carry a
// Retry-After delay readable through services.RetryAfter.
//
// # Retry Behaviour
//
// The client retries 408/429/5xx responses, empty content and network timeouts
// with exponential backoff (base 2s, max 8s, 3 attempts by default), honouring
// Retry-After. Callers with their own retry loop pass WithRetryMaxAttempts(1).
// Context cancellation aborts retries immediately.
package llm
