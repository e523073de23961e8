package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)

	token, err := svc.GenerateToken(Claims{ID: "c1", Role: 400, EntityType: "clinic", Email: "c@x.io", Name: "Sunrise"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "c1", claims.ID)
	assert.Equal(t, 400, claims.Role)
	assert.Equal(t, "clinic", claims.EntityType)
	assert.Equal(t, "c1", claims.Subject)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("one", time.Hour).GenerateToken(Claims{ID: "p1", Role: 300})
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("s", time.Minute).(*jwtService)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateToken(Claims{ID: "p1", Role: 300})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewJWTService("s", time.Minute).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
