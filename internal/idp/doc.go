// Package idp talks to the external identity provider.
//
// # Gateway
//
// Gateway is the typed view of the provider's management API. Auth0Client
// implements it over HTTP with a client-credentials token. It performs no
// retries: every call is bounded by its own timeout and fails with either a
// ProviderUnavailableError (network failure, timeout, 502, 503, 504) or a
// ProviderError (any other non-2xx answer).
//
// # Availability probe
//
// Probe wraps a Gateway with a circuit breaker. The first ProviderUnavailable
// moves it from Available to Degraded. While degraded, reads are answered from
// FallbackDirectory, a small synthetic dataset whose entries carry
// SourceFallback, and writes fail fast. Once the cooldown has elapsed a single
// caller is let through as the probe; its outcome decides between Available
// and another cooldown. Callers must never persist fallback identities.
package idp
