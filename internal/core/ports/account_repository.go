package ports

import (
	"context"
	"time"

	"github.com/structo/structo-api/internal/core/domain"
)

// ListAccountsFilter carries the query parameters for listing accounts.
type ListAccountsFilter struct {
	Role   domain.Role   // optional
	Status domain.Status // optional
	Search string        // optional: partial match on user ID, email, first or last name
	Page   int           // 1-based
	Limit  int           // capped at 100 by the service
}

// AccountRepository defines persistence operations for accounts. Every
// lookup returns domain.ErrAccountNotFound when nothing matches, and writes
// that collide on email or user ID return domain.ErrAccountExists.
type AccountRepository interface {
	// Create assigns the numeric ID and stores the account.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByUserID matches case-insensitively.
	FindByUserID(ctx context.Context, userID string) (*domain.Account, error)
	// FindFirstByRole returns the earliest created account holding role.
	FindFirstByRole(ctx context.Context, role domain.Role) (*domain.Account, error)
	// FindByEmailLocalPart returns at most limit accounts whose email, up to
	// the '@', equals localPart case-insensitively.
	FindByEmailLocalPart(ctx context.Context, localPart string, limit int) ([]*domain.Account, error)
	// List returns one page of accounts, newest first, and the total match count.
	List(ctx context.Context, filter ListAccountsFilter) ([]*domain.Account, int64, error)

	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	// UpdatePassword swaps the hash and sets the forced-change flag.
	UpdatePassword(ctx context.Context, id int64, passwordHash string, mustChange bool, at time.Time) error
	SetStatus(ctx context.Context, id int64, status domain.Status, at time.Time) error

	// SetResetToken stores the digest of a freshly issued reset token.
	SetResetToken(ctx context.Context, id int64, digest string, expiry time.Time) error
	// FindByResetToken returns the account holding digest, regardless of expiry.
	FindByResetToken(ctx context.Context, digest string) (*domain.Account, error)
	// ConsumeResetToken swaps the password hash and clears the token in one
	// update that only applies while digest is still stored and unexpired at
	// at. It returns domain.ErrInvalidResetToken when the update matched nothing.
	ConsumeResetToken(ctx context.Context, id int64, digest, passwordHash string, at time.Time) error

	CountStats(ctx context.Context) (*domain.AccountStats, error)
}
