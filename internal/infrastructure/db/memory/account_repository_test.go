package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

func TestAccountRepository_UniqueCaseInsensitive(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.Account{Email: "a@x.com", UserID: "QAUSER1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.Account{Email: "A@X.COM", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = repo.Create(ctx, &domain.Account{Email: "b@x.com", UserID: "qauser1", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, total, err := repo.List(ctx, ports.ListAccountsFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestAccountRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewAccountRepository()
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Create(context.Background(), &domain.Account{Email: "race@x.com"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestAccountRepository_Lookups(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	older, _ := repo.Create(ctx, &domain.Account{Email: "root@x.com", Role: domain.RoleSuperAdmin, CreatedAt: time.Unix(10, 0)})
	_, _ = repo.Create(ctx, &domain.Account{Email: "root2@x.com", Role: domain.RoleSuperAdmin, CreatedAt: time.Unix(20, 0)})
	_, _ = repo.Create(ctx, &domain.Account{Email: "sam@a.com", UserID: "SAMUEL1"})
	_, _ = repo.Create(ctx, &domain.Account{Email: "Sam@b.com"})

	got, err := repo.FindFirstByRole(ctx, domain.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	matches, err := repo.FindByEmailLocalPart(ctx, "SAM", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = repo.FindByEmailLocalPart(ctx, "sam", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	byUserID, err := repo.FindByUserID(ctx, "samuel1")
	require.NoError(t, err)
	assert.Equal(t, "sam@a.com", byUserID.Email)

	_, err = repo.FindByUserID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	repo := NewAccountRepository()
	created, _ := repo.Create(context.Background(), &domain.Account{Email: "a@x.com", Role: domain.RoleUser})
	created.Role = domain.RoleSuperAdmin

	got, _ := repo.FindByID(context.Background(), created.ID)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestAccountRepository_ResetTokenLifecycle(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	acc, _ := repo.Create(ctx, &domain.Account{Email: "a@x.com", MustChangePassword: true})
	now := time.Now()

	require.NoError(t, repo.SetResetToken(ctx, acc.ID, "digest", now.Add(time.Hour)))
	found, err := repo.FindByResetToken(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, found.ID)

	require.NoError(t, repo.ConsumeResetToken(ctx, acc.ID, "digest", "newhash", now))
	assert.ErrorIs(t, repo.ConsumeResetToken(ctx, acc.ID, "digest", "other", now), domain.ErrInvalidResetToken)

	stored, _ := repo.FindByID(ctx, acc.ID)
	assert.Equal(t, "newhash", stored.PasswordHash)
	assert.False(t, stored.MustChangePassword)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpiry)

	_, err = repo.FindByResetToken(ctx, "digest")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepository_ExpiredTokenNotConsumed(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	acc, _ := repo.Create(ctx, &domain.Account{Email: "a@x.com", PasswordHash: "old"})
	now := time.Now()

	require.NoError(t, repo.SetResetToken(ctx, acc.ID, "digest", now))
	assert.ErrorIs(t, repo.ConsumeResetToken(ctx, acc.ID, "digest", "new", now), domain.ErrInvalidResetToken)

	stored, _ := repo.FindByID(ctx, acc.ID)
	assert.Equal(t, "old", stored.PasswordHash)
}

func TestAccountRepository_ListAndStats(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := domain.StatusActive
		if i%2 == 1 {
			status = domain.StatusInactive
		}
		_, _ = repo.Create(ctx, &domain.Account{
			Email:     fmt.Sprintf("user%d@x.com", i),
			FirstName: fmt.Sprintf("Name%d", i),
			Role:      domain.RoleUser,
			Status:    status,
			CreatedAt: time.Unix(int64(100+i), 0),
		})
	}

	items, total, err := repo.List(ctx, ports.ListAccountsFilter{Status: domain.StatusActive, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "user4@x.com", items[0].Email)

	items, _, err = repo.List(ctx, ports.ListAccountsFilter{Search: "name3", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "user3@x.com", items[0].Email)

	items, _, err = repo.List(ctx, ports.ListAccountsFilter{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, items)

	stats, err := repo.CountStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.InactiveUsers)
	assert.Equal(t, []domain.RoleCount{{Role: domain.RoleUser, Count: 5}}, stats.UsersByRole)
}
