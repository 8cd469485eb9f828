package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DzNk/PracticeAstuWinterBack/internal/auth"
	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

func newTestAuthority(t *testing.T) *auth.TokenAuthority {
	t.Helper()

	a, err := auth.NewTokenAuthority("test-secret", "HS256")
	if err != nil {
		t.Fatalf("new token authority: %v", err)
	}
	return a
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	authority := newTestAuthority(t)
	m := NewAuthMiddleware(authority)

	token, err := authority.Issue(42, "seller", model.PermissionSellProducts)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("claims not in context")
		}
		if claims.UserID != 42 {
			t.Fatalf("user id from context = %d, want 42", claims.UserID)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/protected", nil)

	m.SetAuthCookie(w, token)
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	if !resCookies[0].HttpOnly {
		t.Fatalf("auth cookie must be HttpOnly")
	}

	r.AddCookie(resCookies[0])

	handler := m.Require(model.PermissionSellProducts)(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware(newTestAuthority(t))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/protected", nil)

	handler := m.Require(model.PermissionSellProducts)(next)
	handler.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InsufficientPermission(t *testing.T) {
	authority := newTestAuthority(t)
	m := NewAuthMiddleware(authority)

	token, err := authority.Issue(1, "seller", model.PermissionSellProducts)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})

	handler := m.Require(model.PermissionManageUsers)(next)
	handler.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	m := NewAuthMiddleware(newTestAuthority(t))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})

	handler := m.Require(model.PermissionSellProducts)(next)
	handler.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
