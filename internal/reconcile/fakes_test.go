package reconcile_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/idp"
)

// directory is an in-memory provider tenant.
type directory struct {
	mu        sync.Mutex
	users     []idp.User
	roles     map[string][]string
	getErr    error
	removeErr error
	delay     time.Duration

	listCalls atomic.Int32
	getCalls  atomic.Int32
}

func newDirectory(n int) *directory {
	d := &directory{roles: map[string][]string{}}

	for i := range n {
		d.users = append(d.users, idp.User{
			ExternalID: fmt.Sprintf("auth0|%04d", i),
			Email:      fmt.Sprintf("user%04d@agromano.com", i),
			Source:     idp.SourceIdP,
		})
	}

	return d
}

func (d *directory) add(u idp.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.Source == "" {
		u.Source = idp.SourceIdP
	}

	d.users = append(d.users, u)
}

func (d *directory) ListUsers(_ context.Context, page, perPage int) (idp.UserPage, error) {
	d.listCalls.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()

	start := min(page*perPage, len(d.users))
	end := min(start+perPage, len(d.users))

	return idp.UserPage{
		Users: append([]idp.User(nil), d.users[start:end]...),
		Start: start,
		Limit: perPage,
		Total: len(d.users),
	}, nil
}

func (d *directory) SearchUsers(ctx context.Context, _ string, page, perPage int) (idp.UserPage, error) {
	return d.ListUsers(ctx, page, perPage)
}

func (d *directory) GetUser(_ context.Context, externalID string) (idp.User, error) {
	d.getCalls.Add(1)

	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.getErr != nil {
		return idp.User{}, d.getErr
	}

	for _, u := range d.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}

	return idp.User{}, &idp.ProviderError{Op: "GetUser", StatusCode: 404, Message: "not found"}
}

func (d *directory) ListRoles(context.Context) ([]idp.Role, error) {
	return nil, nil
}

func (d *directory) GetUserRoles(_ context.Context, externalID string) ([]idp.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	roles := []idp.Role{}
	for _, id := range d.roles[externalID] {
		roles = append(roles, idp.Role{ID: id, Name: id, Source: idp.SourceIdP})
	}

	return roles, nil
}

func (d *directory) AssignRoles(_ context.Context, externalID string, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roles[externalID] = append(d.roles[externalID], ids...)

	return nil
}

func (d *directory) RemoveRoles(_ context.Context, externalID string, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.removeErr != nil {
		return d.removeErr
	}

	d.roles[externalID] = slices.DeleteFunc(d.roles[externalID], func(id string) bool {
		return slices.Contains(ids, id)
	})

	return nil
}

// recorder keeps audit entries in memory.
type recorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recorder) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
}

func (r *recorder) actions(entity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string

	for _, e := range r.entries {
		if e.Entity == entity {
			out = append(out, e.Action)
		}
	}

	return out
}

func storeActive() store.Filter {
	return store.Filter{State: models.AccountActive}
}
