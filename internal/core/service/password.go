package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/structo/structo-api/internal/core/domain"
)

const (
	minPasswordLength   = 8
	tempPasswordLength  = 12
	resetTokenByteCount = 32
)

// Alphabets for generated passwords skip look-alike characters.
const (
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars  = "abcdefghjkmnpqrstuvwxyz"
	digitChars  = "23456789"
	symbolChars = "@#$%&*!?"
)

// PasswordHasher wraps bcrypt with a configurable cost.
type PasswordHasher struct {
	cost int
	// dummyHash is compared against when no account matched, so a miss costs
	// as much as a wrong password.
	dummyHash []byte
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("structo-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Hash returns the bcrypt hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Matches reports whether password verifies against hash.
func (h *PasswordHasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Waste runs a comparison against the dummy hash and discards the result.
func (h *PasswordHasher) Waste(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

func validateNewPassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	return nil
}

// generateTemporaryPassword returns a tempPasswordLength password with at
// least one upper-case letter, lower-case letter, digit and symbol.
func generateTemporaryPassword() (string, error) {
	classes := []string{upperChars, lowerChars, digitChars, symbolChars}
	all := upperChars + lowerChars + digitChars + symbolChars

	out := make([]byte, 0, tempPasswordLength)
	for _, set := range classes {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < tempPasswordLength {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the class order is not predictable.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle password: %w", err)
		}
		k := j.Int64()
		out[i], out[k] = out[k], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("generate password: %w", err)
	}
	return set[n.Int64()], nil
}

// newResetToken returns the opaque token for the email link and the digest
// that gets stored.
func newResetToken() (token, digest string, err error) {
	b := make([]byte, resetTokenByteCount)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
