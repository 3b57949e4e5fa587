package idp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromano/identity-gate/internal/idp"
)

// stubGateway answers every call with err, or with a single real user.
type stubGateway struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
	block chan struct{}
}

func (s *stubGateway) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubGateway) result() error {
	s.calls.Add(1)

	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

func (s *stubGateway) ListUsers(context.Context, int, int) (idp.UserPage, error) {
	if err := s.result(); err != nil {
		return idp.UserPage{}, err
	}

	return idp.UserPage{Users: []idp.User{{ExternalID: "auth0|real", Source: idp.SourceIdP}}, Total: 1}, nil
}

func (s *stubGateway) SearchUsers(ctx context.Context, _ string, page, perPage int) (idp.UserPage, error) {
	return s.ListUsers(ctx, page, perPage)
}

func (s *stubGateway) GetUser(_ context.Context, id string) (idp.User, error) {
	if err := s.result(); err != nil {
		return idp.User{}, err
	}

	return idp.User{ExternalID: id, Source: idp.SourceIdP}, nil
}

func (s *stubGateway) ListRoles(context.Context) ([]idp.Role, error) {
	return nil, s.result()
}

func (s *stubGateway) GetUserRoles(context.Context, string) ([]idp.Role, error) {
	return nil, s.result()
}

func (s *stubGateway) AssignRoles(context.Context, string, []string) error {
	return s.result()
}

func (s *stubGateway) RemoveRoles(context.Context, string, []string) error {
	return s.result()
}

var errDown = &idp.ProviderUnavailableError{Op: "test", Err: errors.New("connection refused")}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newProbe(gw idp.Gateway) (*idp.Probe, *clock) {
	c := &clock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	p := idp.NewProbe(gw, idp.NewFallbackDirectory(), 30*time.Second).WithClock(c.Now)

	return p, c
}

func TestProbeTripsAndServesFallback(t *testing.T) {
	gw := &stubGateway{}
	p, c := newProbe(gw)
	ctx := context.Background()

	page, err := p.ListUsers(ctx, 0, 50)
	require.NoError(t, err)
	assert.False(t, page.IsFallback())
	assert.Equal(t, idp.Available, p.State())

	gw.setErr(errDown)

	// the failing call itself is answered from the fallback
	page, err = p.ListUsers(ctx, 0, 50)
	require.NoError(t, err)
	assert.True(t, page.IsFallback())
	assert.Equal(t, idp.Degraded, p.State())
	assert.True(t, p.Degraded())
	assert.Equal(t, int32(2), gw.calls.Load())

	// inside the cooldown the provider is not called at all
	c.Advance(10 * time.Second)

	for range 5 {
		page, err = p.ListUsers(ctx, 0, 50)
		require.NoError(t, err)
		assert.True(t, page.IsFallback())
	}

	assert.Equal(t, int32(2), gw.calls.Load())
}

func TestProbeRecovers(t *testing.T) {
	gw := &stubGateway{err: errDown}
	p, c := newProbe(gw)
	ctx := context.Background()

	_, _ = p.ListUsers(ctx, 0, 50)
	require.Equal(t, idp.Degraded, p.State())

	// failed probe starts a new cooldown
	c.Advance(31 * time.Second)

	_, err := p.ListUsers(ctx, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, idp.Degraded, p.State())
	assert.Equal(t, int32(2), gw.calls.Load())

	c.Advance(29 * time.Second)
	_, _ = p.ListUsers(ctx, 0, 50)
	assert.Equal(t, int32(2), gw.calls.Load())

	// successful probe closes the breaker
	gw.setErr(nil)
	c.Advance(2 * time.Second)

	page, err := p.ListUsers(ctx, 0, 50)
	require.NoError(t, err)
	assert.False(t, page.IsFallback())
	assert.Equal(t, idp.Available, p.State())
}

func TestProbeSingleProbeCall(t *testing.T) {
	gw := &stubGateway{err: errDown}
	p, c := newProbe(gw)
	ctx := context.Background()

	_, _ = p.GetUser(ctx, "fallback|admin")
	require.Equal(t, idp.Degraded, p.State())

	gw.setErr(nil)
	gw.block = make(chan struct{})
	c.Advance(time.Minute)

	probeDone := make(chan error)

	go func() {
		_, err := p.GetUser(ctx, "fallback|admin")
		probeDone <- err
	}()

	require.Eventually(t, func() bool { return p.State() == idp.Probing }, time.Second, time.Millisecond)

	// concurrent callers while probing get fallback answers
	for range 10 {
		u, err := p.GetUser(ctx, "fallback|admin")
		require.NoError(t, err)
		assert.True(t, u.IsFallback())
	}

	close(gw.block)
	require.NoError(t, <-probeDone)

	assert.Equal(t, int32(2), gw.calls.Load())
	assert.Equal(t, idp.Available, p.State())
}

func TestProbeIgnoresProviderErrors(t *testing.T) {
	gw := &stubGateway{err: &idp.ProviderError{Op: "GetUser", StatusCode: 404}}
	p, _ := newProbe(gw)

	_, err := p.GetUser(context.Background(), "auth0|missing")
	assert.ErrorIs(t, err, idp.ErrIdentityNotFound)
	assert.Equal(t, idp.Available, p.State())
}

func TestProbeWritesFailFastWhenDegraded(t *testing.T) {
	gw := &stubGateway{err: errDown}
	p, _ := newProbe(gw)
	ctx := context.Background()

	err := p.AssignRoles(ctx, "auth0|1", []string{"rol_1"})
	assert.ErrorIs(t, err, idp.ErrProviderUnavailable)
	assert.Equal(t, idp.Degraded, p.State())

	gw.setErr(nil)

	err = p.RemoveRoles(ctx, "auth0|1", []string{"rol_1"})
	assert.ErrorIs(t, err, idp.ErrProviderUnavailable)
	assert.Equal(t, int32(1), gw.calls.Load())
}

func TestProbeUnknownIdentityWhileDegraded(t *testing.T) {
	gw := &stubGateway{err: errDown}
	p, _ := newProbe(gw)

	_, err := p.GetUser(context.Background(), "auth0|real")
	assert.ErrorIs(t, err, idp.ErrProviderUnavailable)
}

func TestProbeCanceledCallerDoesNotTrip(t *testing.T) {
	gw := &stubGateway{}
	p, _ := newProbe(gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw.setErr(&idp.ProviderUnavailableError{Op: "GetUser", Err: context.Canceled})

	_, _ = p.GetUser(ctx, "auth0|1")
	assert.Equal(t, idp.Available, p.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "available", idp.Available.String())
	assert.Equal(t, "degraded", idp.Degraded.String())
	assert.Equal(t, "probing", idp.Probing.String())
}
