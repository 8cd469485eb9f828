// Package middleware содержит HTTP middleware сервиса бэк-офиса.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/DzNk/PracticeAstuWinterBack/internal/auth"
	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

type contextKey string

const claimsKey contextKey = "claims"

// AccessTokenCookie — имя cookie с токеном доступа.
const AccessTokenCookie = "access_token"

// AuthMiddleware выполняет проверку токена доступа и требуемых прав.
type AuthMiddleware struct {
	authority *auth.TokenAuthority
}

// NewAuthMiddleware создаёт middleware поверх указанного центра токенов.
func NewAuthMiddleware(authority *auth.TokenAuthority) *AuthMiddleware {
	return &AuthMiddleware{authority: authority}
}

// Require возвращает middleware, пропускающий запрос только при наличии
// валидного токена со всеми требуемыми наборами прав. Каждый набор
// проверяется независимо.
func (a *AuthMiddleware) Require(required ...model.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessTokenCookie)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			claims, err := a.authority.Verify(cookie.Value, required...)
			if err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetAuthCookie устанавливает cookie с токеном доступа.
// Cookie недоступна клиентскому скрипту.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// GetClaimsFromContext извлекает данные токена из контекста запроса.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
