// Package memory is an in-process authkit.AccountRepository for development
// servers and load tests. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santokhan/authkit"
)

type Repository struct {
	mu       sync.RWMutex
	accounts map[string]authkit.Account
	now      func() time.Time
}

var _ authkit.AccountRepository = (*Repository)(nil)

func New() *Repository {
	return &Repository{accounts: make(map[string]authkit.Account), now: time.Now}
}

func (r *Repository) FindByContact(_ context.Context, c authkit.Contact) (authkit.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if matches(a, c) {
			return clone(a), nil
		}
	}
	return authkit.Account{}, authkit.ErrNotFound
}

func matches(a authkit.Account, c authkit.Contact) bool {
	switch {
	case c.Email != "":
		return a.Email == c.Email
	case c.Phone != "":
		return a.Phone == c.Phone
	case c.Username != "":
		return a.Username == c.Username
	}
	return false
}

func (r *Repository) FindByID(_ context.Context, id string) (authkit.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return authkit.Account{}, authkit.ErrNotFound
	}
	return clone(a), nil
}

// Create checks uniqueness and inserts under one lock.
func (r *Repository) Create(_ context.Context, a authkit.Account) (authkit.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; ok {
		return authkit.Account{}, authkit.ErrDuplicate
	}
	for _, existing := range r.accounts {
		if conflicts(existing, a) {
			return authkit.Account{}, authkit.ErrDuplicate
		}
	}
	r.accounts[a.ID] = clone(a)
	return clone(a), nil
}

func conflicts(x, y authkit.Account) bool {
	return (y.Email != "" && x.Email == y.Email) ||
		(y.Phone != "" && x.Phone == y.Phone) ||
		(y.Username != "" && x.Username == y.Username)
}

func (r *Repository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.mutate(id, true, func(a *authkit.Account) { a.PasswordHash = hash })
}

func (r *Repository) UpdateVerified(_ context.Context, id string, verified bool) error {
	return r.mutate(id, true, func(a *authkit.Account) { a.Verified = verified })
}

func (r *Repository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, false, func(a *authkit.Account) {
		t := at.UTC()
		a.LastLogin = &t
	})
}

func (r *Repository) UpdateRole(_ context.Context, id string, role authkit.Role) error {
	return r.mutate(id, true, func(a *authkit.Account) { a.Role = role })
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return authkit.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *Repository) List(_ context.Context, opts authkit.ListOptions) ([]authkit.Account, int, error) {
	r.mu.RLock()
	all := make([]authkit.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		all = append(all, clone(a))
	}
	r.mu.RUnlock()

	less := lessFunc(opts.SortBy)
	sort.Slice(all, func(i, j int) bool {
		if c := less(all[i], all[j]); c != 0 {
			if opts.Order > 0 {
				return c < 0
			}
			return c > 0
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if opts.Skip >= total {
		return []authkit.Account{}, total, nil
	}
	end := total
	if opts.Limit > 0 && opts.Skip+opts.Limit < end {
		end = opts.Skip + opts.Limit
	}
	return all[opts.Skip:end], total, nil
}

func lessFunc(field authkit.SortField) func(x, y authkit.Account) int {
	switch field {
	case authkit.SortEmail:
		return func(x, y authkit.Account) int { return strings.Compare(x.Email, y.Email) }
	case authkit.SortName:
		return func(x, y authkit.Account) int { return strings.Compare(x.Name, y.Name) }
	case authkit.SortPhone:
		return func(x, y authkit.Account) int { return strings.Compare(x.Phone, y.Phone) }
	case authkit.SortUpdatedAt:
		return func(x, y authkit.Account) int { return x.UpdatedAt.Compare(y.UpdatedAt) }
	default:
		return func(x, y authkit.Account) int { return x.CreatedAt.Compare(y.CreatedAt) }
	}
}

func (r *Repository) mutate(id string, touch bool, fn func(*authkit.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return authkit.ErrNotFound
	}
	fn(&a)
	if touch {
		a.UpdatedAt = r.now().UTC()
	}
	r.accounts[id] = a
	return nil
}

func clone(a authkit.Account) authkit.Account {
	if a.LastLogin != nil {
		t := *a.LastLogin
		a.LastLogin = &t
	}
	return a
}
