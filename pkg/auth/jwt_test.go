package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func testUser() *model.User {
	return &model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "pat@example.com",
		Role:  model.RolePatient,
	}
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, model.RolePatient, claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	user := testUser()

	expired := &jwtService{secret: []byte("secret"), expiry: time.Hour, now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}
	expiredToken, err := expired.GenerateAccessToken(user)
	require.NoError(t, err)

	otherKey, err := NewJWTService("other", time.Hour).GenerateAccessToken(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	svc := NewJWTService("secret", time.Hour)
	for name, token := range map[string]string{
		"expired":   expiredToken,
		"wrong key": otherKey,
		"alg none":  none,
		"garbage":   "not-a-token",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
