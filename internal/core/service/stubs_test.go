package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

// stubAccountRepo is a map-backed AccountRepository with the same
// case-insensitive semantics as the Mongo implementation.
type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	nextID   int64

	touches int
	// failWith, when set, is returned by every method.
	failWith error
	// failResetWrite, when set, is returned by SetResetToken only.
	failResetWrite error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func (r *stubAccountRepo) put(a *domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := cloneAccount(a)
	c.ID = r.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Unix(r.nextID, 0).UTC()
	}
	r.accounts[c.ID] = c
	return cloneAccount(c)
}

func (r *stubAccountRepo) get(id int64) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.accounts[id])
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	r.mu.Lock()
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, a.Email) ||
			(a.UserID != "" && strings.EqualFold(existing.UserID, a.UserID)) {
			r.mu.Unlock()
			return nil, domain.ErrAccountExists
		}
	}
	r.mu.Unlock()
	return r.put(a), nil
}

func (r *stubAccountRepo) first(match func(*domain.Account) bool) (*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Account
	for _, a := range r.accounts {
		if match(a) && (found == nil || a.CreatedAt.Before(found.CreatedAt)) {
			found = a
		}
	}
	if found == nil {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(found), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.ID == id })
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	return r.first(func(a *domain.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *stubAccountRepo) FindByUserID(_ context.Context, userID string) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.UserID != "" && strings.EqualFold(a.UserID, userID) })
}

func (r *stubAccountRepo) FindFirstByRole(_ context.Context, role domain.Role) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.Role == role })
}

func (r *stubAccountRepo) FindByEmailLocalPart(_ context.Context, localPart string, limit int) ([]*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.accounts {
		if strings.EqualFold(domain.EmailLocalPart(a.Email), localPart) {
			out = append(out, cloneAccount(a))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *stubAccountRepo) List(_ context.Context, f ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.Account
	for _, a := range r.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Email+" "+a.UserID), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, cloneAccount(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *stubAccountRepo) update(id int64, fn func(*domain.Account)) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	fn(a)
	return nil
}

func (r *stubAccountRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	r.touches++
	return r.update(id, func(a *domain.Account) { a.LastLoginAt = &at })
}

func (r *stubAccountRepo) UpdatePassword(_ context.Context, id int64, hash string, mustChange bool, at time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.PasswordHash = hash
		a.MustChangePassword = mustChange
		a.UpdatedAt = at
	})
}

func (r *stubAccountRepo) SetStatus(_ context.Context, id int64, status domain.Status, at time.Time) error {
	return r.update(id, func(a *domain.Account) {
		a.Status = status
		a.UpdatedAt = at
	})
}

func (r *stubAccountRepo) SetResetToken(_ context.Context, id int64, digest string, expiry time.Time) error {
	if r.failResetWrite != nil {
		return r.failResetWrite
	}
	return r.update(id, func(a *domain.Account) {
		a.PasswordResetToken = digest
		a.PasswordResetExpiry = &expiry
	})
}

func (r *stubAccountRepo) FindByResetToken(_ context.Context, digest string) (*domain.Account, error) {
	return r.first(func(a *domain.Account) bool { return a.PasswordResetToken != "" && a.PasswordResetToken == digest })
}

func (r *stubAccountRepo) ConsumeResetToken(_ context.Context, id int64, digest, hash string, at time.Time) error {
	if r.failWith != nil {
		return r.failWith
	}
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

func (r *stubAccountRepo) CountStats(_ context.Context) (*domain.AccountStats, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.AccountStats{}
	byRole := map[domain.Role]int64{}
	for _, a := range r.accounts {
		if a.IsActive() {
			stats.TotalUsers++
		} else {
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

type stubNotifier struct {
	mu      sync.Mutex
	created []ports.AccountCreatedNotice
	resets  []ports.PasswordResetNotice
}

func (n *stubNotifier) AccountCreated(_ context.Context, notice ports.AccountCreatedNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, notice)
}

func (n *stubNotifier) PasswordResetRequested(_ context.Context, notice ports.PasswordResetNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, notice)
}

// testHasher uses the minimum bcrypt cost to keep tests fast.
func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(4)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

// seedAccount stores an account whose password is password.
func seedAccount(t *testing.T, repo *stubAccountRepo, h *PasswordHasher, a domain.Account, password string) *domain.Account {
	t.Helper()
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a.PasswordHash = hash
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	if a.Role == "" {
		a.Role = domain.RoleUser
	}
	return repo.put(&a)
}

type authFixture struct {
	repo     *stubAccountRepo
	hasher   *PasswordHasher
	notifier *stubNotifier
	sessions *SessionIssuer
	svc      *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := newStubAccountRepo()
	h := testHasher(t)
	n := &stubNotifier{}
	sessions := NewSessionIssuer("secret", time.Hour)
	svc := NewAuthService(repo, NewCredentialResolver(repo, h, "SADMIN"), sessions, h, n,
		AuthOptions{ResetTokenTTL: time.Hour, FrontendURL: "https://app.example.com/"}, zerolog.Nop())
	return &authFixture{repo: repo, hasher: h, notifier: n, sessions: sessions, svc: svc}
}
