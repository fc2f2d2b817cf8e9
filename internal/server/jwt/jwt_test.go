package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewService("test-secret-key", 15*time.Minute)

	token, err := s.GenerateToken("u1", "Alice", RoleEditor)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.Username)
	assert.Equal(t, RoleEditor, claims.Role)
	assert.True(t, claims.CanWrite())
}

func TestGenerateToken_InvalidRole(t *testing.T) {
	s := NewService("test-secret-key", time.Minute)

	_, err := s.GenerateToken("u1", "Alice", "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidateToken_Errors(t *testing.T) {
	s := NewService("test-secret-key", time.Minute)
	viewer, err := s.GenerateToken("u2", "Bob", RoleViewer)
	require.NoError(t, err)

	other := NewService("other-secret", time.Minute)
	foreign, err := other.GenerateToken("u1", "Alice", RoleEditor)
	require.NoError(t, err)

	expired := NewService("test-secret-key", -time.Minute)
	old, err := expired.GenerateToken("u1", "Alice", RoleEditor)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "viewer token", token: viewer},
		{name: "wrong secret", token: foreign, wantErr: true},
		{name: "expired", token: old, wantErr: true},
		{name: "garbage", token: "not.a.token", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, claims.CanWrite())
		})
	}
}
