package idp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agromano/identity-gate/internal/logger"
)

// State of the availability probe.
type State int

const (
	// Available calls go to the provider.
	Available State = iota
	// Degraded calls are answered from the fallback directory until the cooldown ends.
	Degraded
	// Probing a single call is testing the provider, everybody else gets fallback data.
	Probing
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Degraded:
		return "degraded"
	case Probing:
		return "probing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultCooldown is used when NewProbe gets a non-positive cooldown.
const DefaultCooldown = 30 * time.Second

type admission int

const (
	admitReal admission = iota
	admitProbe
	admitFallback
)

// Probe is a circuit breaker around a Gateway. It implements Gateway itself.
type Probe struct {
	gw       Gateway
	fallback *FallbackDirectory
	cooldown time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu         sync.Mutex
	state      State
	degradedAt time.Time
}

// NewProbe wraps gw. Reads during outages are answered by fallback.
func NewProbe(gw Gateway, fallback *FallbackDirectory, cooldown time.Duration) *Probe {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	if fallback == nil {
		fallback = NewFallbackDirectory()
	}

	breakerState.Set(float64(Available))

	return &Probe{
		gw:       gw,
		fallback: fallback,
		cooldown: cooldown,
		now:      time.Now,
		log:      logger.Component("idp-probe"),
	}
}

// WithClock replaces the time source, used by tests.
func (p *Probe) WithClock(now func() time.Time) *Probe {
	p.now = now
	return p
}

// State returns the current state.
func (p *Probe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Degraded reports whether calls are currently answered from the fallback directory.
func (p *Probe) Degraded() bool {
	return p.State() != Available
}

func (p *Probe) admit() admission {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Available:
		return admitReal
	case Degraded:
		if p.now().Sub(p.degradedAt) >= p.cooldown {
			p.transition(Probing)
			return admitProbe
		}

		return admitFallback
	default:
		return admitFallback
	}
}

// report feeds the outcome of a real call back into the breaker.
func (p *Probe) report(ctx context.Context, how admission, op string, err error) {
	unavailable := errors.Is(err, ErrProviderUnavailable)

	// a caller that gave up says nothing about the provider
	if unavailable && errors.Is(ctx.Err(), context.Canceled) {
		if how == admitProbe {
			p.mu.Lock()
			p.transition(Degraded)
			p.mu.Unlock()
		}

		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case how == admitProbe && unavailable:
		p.degradedAt = p.now()
		p.transition(Degraded)
		p.log.Warn().Err(err).Str("op", op).Dur("cooldown", p.cooldown).Msg("identity provider probe failed")
	case how == admitProbe:
		p.transition(Available)
		p.log.Info().Str("op", op).Msg("identity provider available again")
	case unavailable && p.state == Available:
		p.degradedAt = p.now()
		p.transition(Degraded)
		p.log.Error().Err(err).Str("op", op).Dur("cooldown", p.cooldown).Msg("identity provider unavailable, serving fallback data")
	}
}

// transition must be called with mu held.
func (p *Probe) transition(to State) {
	if p.state == to {
		return
	}

	p.state = to

	breakerState.Set(float64(to))
	breakerTransitions.WithLabelValues(to.String()).Inc()
}

// read runs a read operation through the breaker.
// The call that trips the breaker is answered from the fallback as well.
func read[T any](ctx context.Context, p *Probe, op string, call, fallback func(context.Context) (T, error)) (T, error) {
	how := p.admit()
	if how == admitFallback {
		fallbackServed.WithLabelValues(op).Inc()
		return fallback(ctx)
	}

	v, err := call(ctx)
	p.report(ctx, how, op, err)

	if err != nil && errors.Is(err, ErrProviderUnavailable) {
		fallbackServed.WithLabelValues(op).Inc()
		return fallback(ctx)
	}

	return v, err
}

// write runs a write operation through the breaker. Writes never fall back.
func (p *Probe) write(ctx context.Context, op string, call func(context.Context) error) error {
	how := p.admit()
	if how == admitFallback {
		return &ProviderUnavailableError{Op: op, Err: errors.New("breaker open")}
	}

	err := call(ctx)
	p.report(ctx, how, op, err)

	return err
}

// ListUsers implements Gateway.
func (p *Probe) ListUsers(ctx context.Context, page, perPage int) (UserPage, error) {
	return read(ctx, p, "ListUsers",
		func(ctx context.Context) (UserPage, error) { return p.gw.ListUsers(ctx, page, perPage) },
		func(ctx context.Context) (UserPage, error) { return p.fallback.ListUsers(ctx, page, perPage) },
	)
}

// SearchUsers implements Gateway.
func (p *Probe) SearchUsers(ctx context.Context, query string, page, perPage int) (UserPage, error) {
	return read(ctx, p, "SearchUsers",
		func(ctx context.Context) (UserPage, error) { return p.gw.SearchUsers(ctx, query, page, perPage) },
		func(ctx context.Context) (UserPage, error) { return p.fallback.SearchUsers(ctx, query, page, perPage) },
	)
}

// GetUser implements Gateway.
func (p *Probe) GetUser(ctx context.Context, externalID string) (User, error) {
	return read(ctx, p, "GetUser",
		func(ctx context.Context) (User, error) { return p.gw.GetUser(ctx, externalID) },
		func(ctx context.Context) (User, error) { return p.fallback.GetUser(ctx, externalID) },
	)
}

// ListRoles implements Gateway.
func (p *Probe) ListRoles(ctx context.Context) ([]Role, error) {
	return read(ctx, p, "ListRoles", p.gw.ListRoles, p.fallback.ListRoles)
}

// GetUserRoles implements Gateway.
func (p *Probe) GetUserRoles(ctx context.Context, externalID string) ([]Role, error) {
	return read(ctx, p, "GetUserRoles",
		func(ctx context.Context) ([]Role, error) { return p.gw.GetUserRoles(ctx, externalID) },
		func(ctx context.Context) ([]Role, error) { return p.fallback.GetUserRoles(ctx, externalID) },
	)
}

// AssignRoles implements Gateway.
func (p *Probe) AssignRoles(ctx context.Context, externalID string, roleIDs []string) error {
	return p.write(ctx, "AssignRoles", func(ctx context.Context) error {
		return p.gw.AssignRoles(ctx, externalID, roleIDs)
	})
}

// RemoveRoles implements Gateway.
func (p *Probe) RemoveRoles(ctx context.Context, externalID string, roleIDs []string) error {
	return p.write(ctx, "RemoveRoles", func(ctx context.Context) error {
		return p.gw.RemoveRoles(ctx, externalID, roleIDs)
	})
}
