// internal/identity/tokens_test.go
package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/fault"
)

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test_secret", time.Minute)
	userID := uuid.New()

	token, err := issuer.Issue(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test_secret", time.Minute)
	other := NewTokenIssuer("different_secret", time.Minute)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test_secret", -time.Minute)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
}

func TestTokenVerifyRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test_secret", time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Verify(token)
		require.Error(t, err, "token %q", token)
		assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
	}
}
