package handler

import "errors"

const (
	// APIPath is the prefix of every authenticated route.
	APIPath = "/api/v1"

	// HealthPath is the unauthenticated health check.
	HealthPath = "/health"

	// MetricsPath exposes prometheus metrics.
	MetricsPath = "/metrics"
)

var (
	// ErrNilDependency is returned by Init when router, cfg or a required service is nil.
	ErrNilDependency = errors.New("router, cfg or a required service is nil")
	// ErrInvalidBody is returned by Bind for unparsable or invalid request bodies.
	ErrInvalidBody = errors.New("invalid request body")
)
