package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/structo/structo-api/internal/core/domain"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// sessionClaims is the signed payload of a session token.
type sessionClaims struct {
	AccountID          int64       `json:"userId"`
	Role               domain.Role `json:"role"`
	Email              string      `json:"email"`
	MustChangePassword bool        `json:"mustChangePassword"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a token for account.
func (s *SessionIssuer) Issue(account *domain.Account) (string, *domain.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	session := &domain.Session{
		AccountID:          account.ID,
		Role:               account.Role,
		Email:              account.Email,
		MustChangePassword: account.MustChangePassword,
		IssuedAt:           now,
		ExpiresAt:          now.Add(s.ttl),
	}

	claims := sessionClaims{
		AccountID:          session.AccountID,
		Role:               session.Role,
		Email:              session.Email,
		MustChangePassword: session.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// Verify decodes token. Any failure is reported as domain.ErrUnauthorized.
func (s *SessionIssuer) Verify(token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(domain.ErrUnauthorized, err)
	}
	if claims.AccountID <= 0 || !claims.Role.IsValid() {
		return nil, domain.ErrUnauthorized
	}

	session := &domain.Session{
		AccountID:          claims.AccountID,
		Role:               claims.Role,
		Email:              claims.Email,
		MustChangePassword: claims.MustChangePassword,
		ExpiresAt:          claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return session, nil
}
