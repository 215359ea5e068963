package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// managerRoles may use the user administration endpoints at all.
var managerRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}

// UserService implements account administration.
type UserService struct {
	repo     ports.AccountRepository
	hasher   *PasswordHasher
	notifier ports.Notifier
	loginURL string
	now      func() time.Time
	log      zerolog.Logger
}

// NewUserService returns a UserService. frontendURL is used to build the
// login link in account-created emails.
func NewUserService(repo ports.AccountRepository, hasher *PasswordHasher, notifier ports.Notifier, frontendURL string, log zerolog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		notifier: notifier,
		loginURL: strings.TrimRight(frontendURL, "/") + "/login",
		now:      time.Now,
		log:      log,
	}
}

// ListUsers returns a page of accounts, newest first.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.Session, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	if err := domain.RequireRole(actor.Role, managerRoles...); err != nil {
		return nil, err
	}

	filter := ports.ListAccountsFilter{Search: strings.TrimSpace(in.Search)}
	if in.Role != "" {
		role, ok := domain.ParseRole(in.Role)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
		}
		filter.Role = role
	}
	if in.Status != "" {
		status := domain.Status(strings.ToUpper(strings.TrimSpace(in.Status)))
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, in.Status)
		}
		filter.Status = status
	}

	filter.Limit = in.Limit
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	filter.Page = in.Page
	if filter.Page < 1 {
		filter.Page = 1
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &ports.ListUsersResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// CreateUser creates an account with a generated temporary password that
// must be changed at first login.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Session, in ports.CreateUserInput) (*ports.CreateUserResult, error) {
	if err := domain.RequireRole(actor.Role, managerRoles...); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Role == "" {
		return nil, fmt.Errorf("%w: email and role are required", domain.ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: please enter a valid email address", domain.ErrValidation)
	}
	userID := domain.NormalizeUserID(in.UserID)
	if userID != "" {
		if err := domain.ValidateUserID(userID); err != nil {
			return nil, err
		}
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
	}

	if !domain.CanCreate(actor.Role, role) {
		return nil, fmt.Errorf("%w: you cannot create a user with role %s", domain.ErrForbidden, role)
	}

	if err := s.ensureUnique(ctx, email, userID); err != nil {
		return nil, err
	}

	password, err := generateTemporaryPassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	creator := actor.AccountID
	account := &domain.Account{
		UserID:             userID,
		Email:              email,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		PasswordHash:       hash,
		MustChangePassword: true,
		Role:               role,
		Status:             domain.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedByID:        &creator,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	s.notifier.AccountCreated(ctx, ports.AccountCreatedNotice{
		Email:             created.Email,
		UserID:            created.UserID,
		FirstName:         created.FirstName,
		RoleLabel:         created.Role.Label(),
		TemporaryPassword: password,
		LoginURL:          s.loginURL,
	})

	s.log.Info().
		Int64("account_id", created.ID).
		Int64("created_by", creator).
		Str("role", string(created.Role)).
		Msg("account created")

	return &ports.CreateUserResult{Account: created, GeneratedPassword: password}, nil
}

func (s *UserService) ensureUnique(ctx context.Context, email, userID string) error {
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: a user with this email already exists", domain.ErrAccountExists)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}

	if userID == "" {
		return nil
	}
	if _, err := s.repo.FindByUserID(ctx, userID); err == nil {
		return fmt.Errorf("%w: a user with this user ID already exists", domain.ErrAccountExists)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}
	return nil
}

// Deactivate marks the target INACTIVE. Nobody may deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.Session, targetID int64) error {
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.ID == actor.AccountID {
		return domain.ErrSelfDeactivation
	}
	if !domain.CanDeactivate(actor.Role, target.Role) {
		return fmt.Errorf("%w: you cannot deactivate this user", domain.ErrForbidden)
	}
	return s.setStatus(ctx, actor, target, domain.StatusInactive)
}

// Activate marks the target ACTIVE again.
func (s *UserService) Activate(ctx context.Context, actor *domain.Session, targetID int64) error {
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !domain.CanDeactivate(actor.Role, target.Role) {
		return fmt.Errorf("%w: you cannot activate this user", domain.ErrForbidden)
	}
	return s.setStatus(ctx, actor, target, domain.StatusActive)
}

func (s *UserService) setStatus(ctx context.Context, actor *domain.Session, target *domain.Account, status domain.Status) error {
	if err := s.repo.SetStatus(ctx, target.ID, status, s.now().UTC()); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	s.log.Info().
		Int64("account_id", target.ID).
		Int64("actor_id", actor.AccountID).
		Str("status", string(status)).
		Msg("account status changed")
	return nil
}

// EnsureSuperAdmin creates the first SUPER_ADMIN when none exists. It is a
// no-op once any SUPER_ADMIN account is present.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	if _, err := s.repo.FindFirstByRole(ctx, domain.RoleSuperAdmin); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return false, err
	}

	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return false, fmt.Errorf("%w: bootstrap email is not a valid address", domain.ErrValidation)
	}
	if err := validateNewPassword(password); err != nil {
		return false, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		Email:        email,
		FirstName:    "Super",
		LastName:     "Admin",
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, err
	}

	s.log.Info().Int64("account_id", created.ID).Msg("bootstrap super admin created")
	return true, nil
}
