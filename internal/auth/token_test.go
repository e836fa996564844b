package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/config"
)

func newTestTokens(expiry time.Duration) *TokenService {
	return NewTokenService(config.Auth{JWTSecret: "test-secret", TokenExpiry: expiry})
}

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := newTestTokens(time.Hour)

	token, err := tokens.EncodeToken("reader@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := tokens.DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", email)
}

func TestTokenService_Expired(t *testing.T) {
	tokens := newTestTokens(time.Hour)
	issued := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	token, err := tokens.EncodeToken("reader@example.com")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tokens.DecodeToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestTokenService_RejectsForeignSignature(t *testing.T) {
	other := NewTokenService(config.Auth{JWTSecret: "other-secret", TokenExpiry: time.Hour})
	token, err := other.EncodeToken("reader@example.com")
	require.NoError(t, err)

	_, err = newTestTokens(time.Hour).DecodeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "reader@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokens(time.Hour).DecodeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Garbage(t *testing.T) {
	tokens := newTestTokens(time.Hour)

	for _, raw := range []string{"", "   ", "not.a.token", "abc"} {
		_, err := tokens.DecodeToken(raw)
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "token %q", raw)
	}
}

func TestTokenService_MissingSecret(t *testing.T) {
	tokens := NewTokenService(config.Auth{})

	_, err := tokens.EncodeToken("reader@example.com")
	assert.Error(t, err)

	_, err = tokens.DecodeToken("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_DefaultExpiry(t *testing.T) {
	tokens := NewTokenService(config.Auth{JWTSecret: "s"})
	assert.Equal(t, 24*time.Hour, tokens.expiry)
}
