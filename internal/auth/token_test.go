package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)

	token, err := issuer.Issue("user-1", "session-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.ID)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	other, err := NewTokenIssuer("another-secret-another-secret-xx")
	require.NoError(t, err)

	expired, err := issuer.Issue("u", "s", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	foreign, err := other.Issue("u", "s", time.Now().Add(time.Hour))
	require.NoError(t, err)
	noSession, err := issuer.Issue("u", "", time.Now().Add(time.Hour))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer: tokenIssuer, Subject: "u", ID: "s", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":         expired,
		"wrong secret":    foreign,
		"missing session": noSession,
		"alg none":        unsigned,
		"garbage":         "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(token)
			assert.Error(t, err)
		})
	}
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}
