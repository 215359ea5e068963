package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/core/domain"
)

type stubVerifier struct {
	session *domain.Session
	err     error
	got     string
}

func (s *stubVerifier) Verify(token string) (*domain.Session, error) {
	s.got = token
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.session
	return &cp, nil
}

type stubRefresher struct {
	role domain.Role
	err  error
}

func (s *stubRefresher) RefreshSession(_ context.Context, session *domain.Session) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *session
	cp.Role = s.role
	return &cp, nil
}

func newAuthContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	verifier := &stubVerifier{session: &domain.Session{AccountID: 7, Role: domain.RoleAdmin, Email: "a@x.com"}}
	c, rec := newAuthContext("Bearer tok123")

	called := false
	handler := Auth(verifier, nil)(func(c echo.Context) error {
		called = true
		s, ok := Session(c)
		if !ok {
			t.Fatalf("session not set")
		}
		if s.AccountID != 7 || s.Role != domain.RoleAdmin {
			t.Fatalf("unexpected session %+v", s)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if verifier.got != "tok123" {
		t.Fatalf("verifier got %q", verifier.got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	verifier := &stubVerifier{session: &domain.Session{AccountID: 1, Role: domain.RoleUser}}
	c, _ := newAuthContext("bearer tok")

	if err := Auth(verifier, nil)(func(echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header":   "",
		"wrong scheme":     "Token abc",
		"no token":         "Bearer",
		"basic credential": "Basic dXNlcjpwYXNz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newAuthContext(header)
			handler := Auth(&stubVerifier{err: errors.New("must not be called")}, nil)(func(echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})
			if err := handler(c); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	c, _ := newAuthContext("Bearer not-a-token")
	verifier := &stubVerifier{err: errors.Join(domain.ErrUnauthorized, errors.New("malformed"))}

	handler := Auth(verifier, nil)(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})
	if err := handler(c); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthMiddleware_RefresherReplacesClaims(t *testing.T) {
	verifier := &stubVerifier{session: &domain.Session{AccountID: 3, Role: domain.RoleAdmin}}
	c, _ := newAuthContext("Bearer tok")

	handler := Auth(verifier, &stubRefresher{role: domain.RoleUser})(func(c echo.Context) error {
		s, _ := Session(c)
		if s.Role != domain.RoleUser {
			t.Fatalf("expected refreshed role USER, got %s", s.Role)
		}
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAuthMiddleware_RefresherRejectsDeactivatedAccount(t *testing.T) {
	verifier := &stubVerifier{session: &domain.Session{AccountID: 3, Role: domain.RoleAdmin}}
	c, _ := newAuthContext("Bearer tok")

	handler := Auth(verifier, &stubRefresher{err: domain.ErrUnauthorized})(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})
	if err := handler(c); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
