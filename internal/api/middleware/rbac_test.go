package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/core/domain"
)

func contextWithSession(s *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if s != nil {
		SetSession(c, s)
	}
	return c, rec
}

func TestRBAC_Allows(t *testing.T) {
	c, rec := contextWithSession(&domain.Session{AccountID: 1, Role: domain.RoleAdmin})

	called := false
	handler := RBAC(domain.RoleSuperAdmin, domain.RoleAdmin)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_Forbids(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleManagerQA, domain.RoleManagerQC, domain.RoleUser} {
		c, _ := contextWithSession(&domain.Session{AccountID: 1, Role: role})

		handler := RBAC(domain.RoleSuperAdmin, domain.RoleAdmin)(func(echo.Context) error {
			t.Fatalf("should not reach next handler")
			return nil
		})

		if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("role %s: expected ErrForbidden, got %v", role, err)
		}
	}
}

func TestRBAC_WithoutSessionIsUnauthorized(t *testing.T) {
	c, _ := contextWithSession(nil)

	err := RBAC(domain.RoleAdmin)(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequirePasswordChanged(t *testing.T) {
	gate := RequirePasswordChanged()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c, _ := contextWithSession(&domain.Session{AccountID: 1, Role: domain.RoleUser, MustChangePassword: true})
	if err := gate(next)(c); !errors.Is(err, domain.ErrPasswordChangeRequired) {
		t.Fatalf("expected ErrPasswordChangeRequired, got %v", err)
	}

	c, rec := contextWithSession(&domain.Session{AccountID: 1, Role: domain.RoleUser})
	if err := gate(next)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
