package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret-secret-secret-secret-secret", time.Minute)
	user := uuid.New()

	token, err := m.IssueAccess(user, models.RoleAdmin)
	require.NoError(t, err)

	gotID, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, user, gotID)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret-a", time.Minute)
	other := NewTokenManager("secret-b", time.Minute)

	token, err := other.IssueAccess(uuid.New(), models.RoleUser)
	require.NoError(t, err)
	_, _, err = m.ParseAccess(token)
	assert.Error(t, err, "чужая подпись")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	raw, err := expired.SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, _, err = m.ParseAccess(raw)
	assert.Error(t, err, "истёкший токен")

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"})
	raw, err = noSub.SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, _, err = m.ParseAccess(raw)
	assert.Error(t, err)
}
