package ports

import (
	"context"

	"github.com/structo/structo-api/internal/core/domain"
)

// CreateUserInput carries the fields an administrator supplies for a new account.
type CreateUserInput struct {
	UserID    string
	Email     string
	Role      string
	FirstName string
	LastName  string
}

// CreateUserResult holds the created account and its one-time temporary password.
type CreateUserResult struct {
	Account           *domain.Account
	GeneratedPassword string
}

// ListUsersInput carries the list endpoint query.
type ListUsersInput struct {
	Role   string
	Status string
	Search string
	Page   int
	Limit  int
}

// ListUsersResult is one page of accounts.
type ListUsersResult struct {
	Items      []*domain.Account
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UserService defines account administration use cases. The actor is the
// acting session; target accounts are always read fresh.
type UserService interface {
	ListUsers(ctx context.Context, actor *domain.Session, input ListUsersInput) (*ListUsersResult, error)
	CreateUser(ctx context.Context, actor *domain.Session, input CreateUserInput) (*CreateUserResult, error)
	Deactivate(ctx context.Context, actor *domain.Session, targetID int64) error
	Activate(ctx context.Context, actor *domain.Session, targetID int64) error
}

// DashboardService exposes aggregate account counts.
type DashboardService interface {
	Stats(ctx context.Context) (*domain.AccountStats, error)
}
