package service

import (
	"context"
	"errors"
	"strings"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const defaultSuperAdminAlias = "SADMIN"

// CredentialResolver finds the one account an identifier and password
// refer to. It never mutates the store.
type CredentialResolver struct {
	repo   ports.AccountRepository
	hasher *PasswordHasher
	alias  string
}

func NewCredentialResolver(repo ports.AccountRepository, hasher *PasswordHasher, superAdminAlias string) *CredentialResolver {
	alias := domain.NormalizeUserID(superAdminAlias)
	if alias == "" {
		alias = defaultSuperAdminAlias
	}
	return &CredentialResolver{repo: repo, hasher: hasher, alias: alias}
}

// Resolve returns the account for identifier. Unknown identifiers and wrong
// passwords both yield domain.ErrInvalidCredentials; an inactive account
// yields domain.ErrAccountDeactivated.
func (r *CredentialResolver) Resolve(ctx context.Context, identifier, password string) (*domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := r.lookup(ctx, identifier)
	if errors.Is(err, domain.ErrAccountNotFound) {
		r.hasher.Waste(password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !account.IsActive() {
		return nil, domain.ErrAccountDeactivated
	}
	if !r.hasher.Matches(account.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	return account, nil
}

func (r *CredentialResolver) lookup(ctx context.Context, identifier string) (*domain.Account, error) {
	if strings.Contains(identifier, "@") {
		return r.repo.FindByEmail(ctx, identifier)
	}

	account, err := r.repo.FindByEmail(ctx, identifier)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return account, err
	}

	normalized := domain.NormalizeUserID(identifier)
	if normalized == r.alias {
		return r.repo.FindFirstByRole(ctx, domain.RoleSuperAdmin)
	}

	account, err = r.repo.FindByUserID(ctx, normalized)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return account, err
	}

	matches, err := r.repo.FindByEmailLocalPart(ctx, identifier, 2)
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, domain.ErrAccountNotFound
	}
	return matches[0], nil
}
