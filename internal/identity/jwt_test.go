package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/pkg/interfaces"
)

const testSecret = "test-secret"

func mint(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	p := NewJWTProvider(testSecret)
	credential := mint(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"name":  "Alice",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ident, err := p.Verify(context.Background(), credential)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident.Sub)
	assert.Equal(t, "Alice", ident.Name)
	assert.Equal(t, "alice@example.com", ident.Email)
}

func TestVerifyWrongSecret(t *testing.T) {
	p := NewJWTProvider(testSecret)
	credential := mint(t, "other-secret", jwt.MapClaims{"sub": "user-1"})

	_, err := p.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredential)
}

func TestVerifyExpiredToken(t *testing.T) {
	p := NewJWTProvider(testSecret)
	credential := mint(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := p.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredential)
}

func TestVerifyMissingSub(t *testing.T) {
	p := NewJWTProvider(testSecret)
	credential := mint(t, testSecret, jwt.MapClaims{"name": "anon"})

	_, err := p.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredential)
}

func TestVerifyGarbage(t *testing.T) {
	p := NewJWTProvider(testSecret)
	_, err := p.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredential)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	p := NewJWTProvider(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"})
	credential, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredential)
}
