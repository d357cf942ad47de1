package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_EmptySecret(t *testing.T) {
	s, err := NewSigner("", time.Minute)
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.Nil(t, s)
}

func TestSignAndValidate(t *testing.T) {
	s, err := NewSigner("test-secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, s.ttl)

	token, err := s.Sign("autopilot", "tailor")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "autopilot", claims.Subject)
	assert.Equal(t, "tailor", claims.Scope)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestValidate_WrongSecret(t *testing.T) {
	a, _ := NewSigner("secret-a", time.Minute)
	b, _ := NewSigner("secret-b", time.Minute)

	token, err := a.Sign("x", "")
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	s, _ := NewSigner("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }

	token, err := s.Sign("x", "")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_RejectsOtherIssuer(t *testing.T) {
	s, _ := NewSigner("secret", time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = s.Validate(signed)
	assert.Error(t, err)
}

func TestValidate_Empty(t *testing.T) {
	s, _ := NewSigner("secret", time.Minute)
	_, err := s.Validate("")
	assert.Error(t, err)
}
