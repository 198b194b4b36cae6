package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidar/team-requests-service/internal/domain"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, err := svc.IssueToken(domain.Identity{UserID: "m1", CampusCode: "C1", Roles: []string{"requests_reviewer"}})
	require.NoError(t, err)

	identity, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "m1", identity.UserID)
	assert.Equal(t, "C1", identity.CampusCode)
	assert.True(t, identity.HasRole("requests_reviewer"))
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewAuthService("other", time.Hour).IssueToken(domain.Identity{UserID: "m1", CampusCode: "C1"})
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		issuer := NewAuthService("secret", time.Hour)
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := issuer.IssueToken(domain.Identity{UserID: "m1", CampusCode: "C1"})
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("missing campus", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"matricula": "m1"}).
			SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}
