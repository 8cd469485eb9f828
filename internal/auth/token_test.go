package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DzNk/PracticeAstuWinterBack/internal/model"
)

func TestNewTokenAuthority(t *testing.T) {
	_, err := NewTokenAuthority("", "HS256")
	assert.Error(t, err, "empty secret must be rejected")

	_, err = NewTokenAuthority("secret", "NOPE")
	assert.Error(t, err, "unknown algorithm must be rejected")

	_, err = NewTokenAuthority("secret", "RS256")
	assert.Error(t, err, "asymmetric algorithm must be rejected")

	_, err = NewTokenAuthority("secret", "HS256")
	require.NoError(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	a, err := NewTokenAuthority("test-secret", "HS256")
	require.NoError(t, err)

	held := model.PermissionManageProducts | model.PermissionSellProducts

	token, err := a.Issue(7, "seller", held)
	require.NoError(t, err)

	claims, err := a.Verify(token, model.PermissionSellProducts)
	require.NoError(t, err)

	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "seller", claims.Username)
	assert.Equal(t, held, claims.Permission())
}

func TestVerifyRequiredSubset(t *testing.T) {
	a, err := NewTokenAuthority("test-secret", "HS256")
	require.NoError(t, err)

	token, err := a.Issue(1, "user", model.PermissionSellProducts)
	require.NoError(t, err)

	// Набор, содержащий бит вне маски токена, должен быть отклонён.
	_, err = a.Verify(token, model.PermissionSellProducts|model.PermissionManageUsers)
	assert.ErrorIs(t, err, ErrForbidden)

	// Каждый набор проверяется независимо: провал любого означает отказ.
	_, err = a.Verify(token, model.PermissionSellProducts, model.PermissionManageProducts)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	a, err := NewTokenAuthority("test-secret", "HS256")
	require.NoError(t, err)

	_, err = a.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenAuthority("other-secret", "HS256")
	require.NoError(t, err)

	token, err := other.Issue(1, "user", model.PermissionSellProducts)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignAlgorithm(t *testing.T) {
	hs512, err := NewTokenAuthority("test-secret", "HS512")
	require.NoError(t, err)

	token, err := hs512.Issue(1, "user", model.PermissionSellProducts)
	require.NoError(t, err)

	hs256, err := NewTokenAuthority("test-secret", "HS256")
	require.NoError(t, err)

	_, err = hs256.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
