package config

import (
	"errors"
)

var (
	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrMissingRequired error if a required setting is empty.
	ErrMissingRequired = errors.New("toml config is missing required settings")

	// ErrCooldownOutOfRange error if breaker.cooldown is outside of the supported range.
	ErrCooldownOutOfRange = errors.New("toml config breaker.cooldown must be between 1s and 10m")

	// ErrJWKSRateTooHigh error if jwks.requestsPerMinute exceeds the provider's fair use.
	ErrJWKSRateTooHigh = errors.New("toml config jwks.requestsPerMinute must be between 1 and 5")

	// ErrInvalidPageSize error if reconcile.pageSize is out of range.
	ErrInvalidPageSize = errors.New("toml config reconcile.pageSize must be between 1 and 100")

	// ErrUnknownGormEngine error if db.gormEngine is not supported.
	ErrUnknownGormEngine = errors.New("toml config db.gormEngine must be mysql, postgres or sqlite")
)
