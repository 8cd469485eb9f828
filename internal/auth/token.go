// Package auth реализует выпуск и проверку токенов доступа с битовой маской прав.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

// ErrInvalidToken возвращается, если токен отсутствует, повреждён или не прошёл проверку подписи.
var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden возвращается, если прав в токене недостаточно для операции.
	ErrForbidden = errors.New("insufficient permissions")
)

// Claims описывает полезную нагрузку токена доступа.
type Claims struct {
	Permissions int64  `json:"permissions"`
	UserID      int64  `json:"uid"`
	Username    string `json:"name"`
	jwt.RegisteredClaims
}

// Permission возвращает маску прав из токена.
func (c *Claims) Permission() model.Permission {
	return model.Permission(c.Permissions)
}

// TokenAuthority выпускает и проверяет подписанные токены доступа.
type TokenAuthority struct {
	secret []byte
	method jwt.SigningMethod
}

// NewTokenAuthority создаёт центр токенов с указанным секретом и алгоритмом подписи.
// Поддерживаются только симметричные HMAC-алгоритмы.
func NewTokenAuthority(secret, algorithm string) (*TokenAuthority, error) {
	if secret == "" {
		return nil, errors.New("empty token secret")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not symmetric", algorithm)
	}

	return &TokenAuthority{
		secret: []byte(secret),
		method: method,
	}, nil
}

// Issue выпускает токен с маской прав и идентификатором пользователя.
func (a *TokenAuthority) Issue(userID int64, username string, permission model.Permission) (string, error) {
	claims := &Claims{
		Permissions: int64(permission),
		UserID:      userID,
		Username:    username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(a.method, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify проверяет подпись токена и наличие каждого требуемого набора прав.
// Каждый элемент required проверяется независимо: отсутствие хотя бы одного
// бита любого набора означает отказ.
func (a *TokenAuthority) Verify(tokenString string, required ...model.Permission) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	held := claims.Permission()
	for _, req := range required {
		if !held.Satisfies(req) {
			return nil, ErrForbidden
		}
	}

	return claims, nil
}
