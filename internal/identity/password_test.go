// internal/identity/password_test.go
package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"libris/internal/fault"
)

func TestPasswordPolicy(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid with hash", "Abcdef#1", false},
		{"valid with at sign", "Secure@Pass", false},
		{"valid at max length", "Abcdefghijklm#n", false},
		{"too short", "Ab#cdef", true},
		{"too long", "Abcdefghijklmn#p", true},
		{"no lowercase", "ABCDEFG#", true},
		{"no uppercase", "abcdefg#", true},
		{"no special", "Abcdefgh1", true},
		{"special outside the allowed set", "Abcdefgh?", true},
		{"empty", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkPasswordPolicy(tc.password)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, fault.IsKind(err, fault.KindValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, salt, err := hashPassword("Secure#Pass1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)

	ok, err := verifyPassword("Secure#Pass1", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("Wrong#Pass1", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = verifyPassword("Secure#Pass1", "not base64!!", hash)
	assert.Error(t, err)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	hash1, salt1, err := hashPassword("Secure#Pass1")
	require.NoError(t, err)
	hash2, salt2, err := hashPassword("Secure#Pass1")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringN(1, 64, 64).Draw(t, "password")

		hash, salt, err := hashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		ok, err := verifyPassword(password, salt, hash)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !ok {
			t.Fatalf("correct password rejected")
		}
		ok, err = verifyPassword(password+"x", salt, hash)
		if err != nil {
			t.Fatalf("verify altered: %v", err)
		}
		if ok {
			t.Fatalf("altered password accepted")
		}
	})
}
