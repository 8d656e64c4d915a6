package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndValidate(t *testing.T) {
	signer := NewSigner([]byte("test-secret"), "bidledger-test", time.Hour)
	actorID := uuid.New()

	token, err := signer.Sign(actorID, "buyer")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actorID.String(), claims.Subject)
	assert.Equal(t, "buyer", claims.Role)
	assert.Equal(t, "bidledger-test", claims.Issuer)
}

func TestSigner_ValidateToken_Failures(t *testing.T) {
	signer := NewSigner([]byte("test-secret"), "bidledger-test", time.Hour)
	actorID := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSigner([]byte("other-secret"), "bidledger-test", time.Hour)
		token, err := other.Sign(actorID, "buyer")
		require.NoError(t, err)

		_, err = signer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewSigner([]byte("test-secret"), "someone-else", time.Hour)
		token, err := other.Sign(actorID, "buyer")
		require.NoError(t, err)

		_, err = signer.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   actorID.String(),
				Issuer:    "bidledger-test",
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = signer.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("rejects non-HMAC signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: actorID.String(),
				Issuer:  "bidledger-test",
			},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = signer.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := signer.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
