package config

import (
	"time"

	"github.com/agromano/identity-gate/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development (sqlite, seeded reference data)
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	IdP       IdP
	JWKS      JWKS
	Breaker   Breaker
	Reconcile Reconcile
	Auth      Auth
	Audit     Audit
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	URL            string // base url for the webserver
	RateLimit      RateLimit
}

// RateLimit settings for the administrative reconciliation endpoints.
type RateLimit struct {
	Enabled bool
	Max     int           // requests per window and client
	Window  time.Duration // sliding window length
	Table   string        // storage table when backed by the database
}

// IdP holds the identity provider tenant and management API credentials.
type IdP struct {
	Domain        string        `validate:"required"` // tenant domain, e.g. "agromano.eu.auth0.com"
	Audience      string        `validate:"required"` // API audience expected in access tokens
	ClientID      string        `validate:"required"` // management API client id
	ClientSecret  string        `validate:"required"` // management API client secret
	ManagementURL string        // optional override of https://{domain}, used for testing
	CallTimeout   time.Duration // bound of every single management API call
}

// JWKS holds the signing key cache settings.
type JWKS struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	RequestsPerMinute int // upper bound of key set fetches
}

// Breaker holds the availability probe settings.
type Breaker struct {
	Cooldown time.Duration // time spent degraded before a single probe call is let through
}

// Reconcile holds the account reconciliation settings.
type Reconcile struct {
	DefaultRoleCode string `validate:"required"`
	PageSize        int
	Workers         int
	RequestTimeout  time.Duration // bound of request-time account resolution
	BatchTimeout    time.Duration // bound of a full reconciliation run
}

// Auth holds the authorization settings.
type Auth struct {
	// DegradedPermissions are granted to accounts that could not be resolved
	// because the provider or the database failed. Empty means no access.
	DegradedPermissions []string
}

// Audit holds the audit sink settings.
type Audit struct {
	QueueSize      int
	AlertThreshold int // consecutive write failures before the sink reports itself degraded
}
