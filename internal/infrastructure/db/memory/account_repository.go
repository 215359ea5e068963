// Package memory holds process-local stores for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

// AccountRepository is a mutex-guarded ports.AccountRepository. Every
// read returns a copy so callers never share state with the store.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
	nextID   int64
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[int64]*domain.Account)}
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func (r *AccountRepository) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(a.Email)
	userID := domain.NormalizeUserID(a.UserID)
	for _, existing := range r.accounts {
		if domain.NormalizeEmail(existing.Email) == email {
			return nil, domain.ErrAccountExists
		}
		if userID != "" && domain.NormalizeUserID(existing.UserID) == userID {
			return nil, domain.ErrAccountExists
		}
	}

	r.nextID++
	stored := clone(a)
	stored.ID = r.nextID
	r.accounts[stored.ID] = stored
	return clone(stored), nil
}

// first returns the earliest created account matching fn.
func (r *AccountRepository) first(fn func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Account
	for _, a := range r.accounts {
		if !fn(a) {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) ||
			(a.CreatedAt.Equal(found.CreatedAt) && a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return nil, domain.ErrAccountNotFound
	}
	return clone(found), nil
}

func (r *AccountRepository) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.ID == id })
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	return r.first(func(a *domain.Account) bool { return domain.NormalizeEmail(a.Email) == email })
}

func (r *AccountRepository) FindByUserID(_ context.Context, userID string) (*domain.Account, error) {
	userID = domain.NormalizeUserID(userID)
	if userID == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.first(func(a *domain.Account) bool { return domain.NormalizeUserID(a.UserID) == userID })
}

func (r *AccountRepository) FindFirstByRole(_ context.Context, role domain.Role) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.Role == role })
}

func (r *AccountRepository) FindByEmailLocalPart(_ context.Context, localPart string, limit int) ([]*domain.Account, error) {
	localPart = strings.ToLower(strings.TrimSpace(localPart))
	if localPart == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Account
	for _, a := range r.sortedLocked(false) {
		if strings.ToLower(domain.EmailLocalPart(a.Email)) == localPart {
			out = append(out, clone(a))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// sortedLocked returns the accounts ordered by creation time. Callers hold mu.
func (r *AccountRepository) sortedLocked(newestFirst bool) []*domain.Account {
	all := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) != newestFirst
		}
		return (a.ID < b.ID) != newestFirst
	})
	return all
}

func (r *AccountRepository) List(_ context.Context, f ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var matched []*domain.Account
	for _, a := range r.sortedLocked(true) {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if search != "" && !matchesSearch(a, search) {
			continue
		}
		matched = append(matched, a)
	}

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*domain.Account, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, clone(a))
	}
	return out, total, nil
}

func matchesSearch(a *domain.Account, search string) bool {
	for _, field := range []string{a.UserID, a.Email, a.FirstName, a.LastName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r *AccountRepository) update(id int64, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	fn(a)
	return nil
}

func (r *AccountRepository) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return r.update(id, func(a *domain.Account) { a.LastLoginAt = &at })
}

func (r *AccountRepository) UpdatePassword(_ context.Context, id int64, hash string, mustChange bool, at time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.PasswordHash = hash
		a.MustChangePassword = mustChange
		a.UpdatedAt = at
	})
}

func (r *AccountRepository) SetStatus(_ context.Context, id int64, status domain.Status, at time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.Status = status
		a.UpdatedAt = at
	})
}

func (r *AccountRepository) SetResetToken(_ context.Context, id int64, digest string, expiry time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.PasswordResetToken = digest
		a.PasswordResetExpiry = &expiry
	})
}

func (r *AccountRepository) FindByResetToken(_ context.Context, digest string) (*domain.Account, error) {
	if digest == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.first(func(a *domain.Account) bool { return a.PasswordResetToken == digest })
}

func (r *AccountRepository) ConsumeResetToken(_ context.Context, id int64, digest, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.PasswordResetToken != digest || !a.HasUsableResetToken(at) {
		return domain.ErrInvalidResetToken
	}
	a.PasswordHash = hash
	a.MustChangePassword = false
	a.PasswordResetToken = ""
	a.PasswordResetExpiry = nil
	a.UpdatedAt = at
	return nil
}

func (r *AccountRepository) CountStats(_ context.Context) (*domain.AccountStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.AccountStats{UsersByRole: []domain.RoleCount{}}
	byRole := make(map[domain.Role]int64)
	for _, a := range r.accounts {
		switch a.Status {
		case domain.StatusActive:
			stats.TotalUsers++
		case domain.StatusInactive:
			stats.InactiveUsers++
		}
		if a.MustChangePassword {
			stats.PendingPasswordChange++
		}
		byRole[a.Role]++
	}
	for _, role := range domain.Roles() {
		if n := byRole[role]; n > 0 {
			stats.UsersByRole = append(stats.UsersByRole, domain.RoleCount{Role: role, Count: n})
		}
	}
	return stats, nil
}
