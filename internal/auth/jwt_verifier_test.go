package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
)

func newTestVerifier(t *testing.T) (*SupabaseJWTVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return newVerifierWithKeyfunc(kf, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims *models.SessionClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func claimsFor(subject, role string, expiresIn time.Duration) *models.SessionClaims {
	return &models.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
		Role: role,
	}
}

func TestVerifyToken(t *testing.T) {
	v, key := newTestVerifier(t)

	claims, err := v.VerifyToken(sign(t, key, claimsFor("user-1", "authenticated", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.GetUserID())
}

func TestVerifyTokenRejects(t *testing.T) {
	v, key := newTestVerifier(t)
	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("user-1", "authenticated", time.Hour)).
		SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	anonymous := claimsFor("user-1", "authenticated", time.Hour)
	anonymous.IsAnonymous = true

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: sign(t, key, claimsFor("user-1", "authenticated", -time.Minute))},
		{name: "anon role", token: sign(t, key, claimsFor("user-1", "anon", time.Hour))},
		{name: "anonymous session", token: sign(t, key, anonymous)},
		{name: "missing subject", token: sign(t, key, claimsFor("", "authenticated", time.Hour))},
		{name: "wrong key", token: sign(t, otherKey, claimsFor("user-1", "authenticated", time.Hour))},
		{name: "hmac algorithm", token: hmacToken},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
