package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(testutil.NewDB(t), &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
	})
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotEmpty(t, reg.RefreshToken)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "pending", reg.User.SubscriptionStatus)
	assert.False(t, reg.User.IsSuperadmin)

	token, err := jwt.Parse(reg.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, reg.User.ID.String(), claims["sub"])
	assert.Equal(t, false, claims["is_superadmin"])

	for _, identifier := range []string{"alice", "alice@example.com"} {
		login, err := svc.Login(ctx, &dto.LoginRequest{UsernameOrEmail: identifier, Password: "secret123"})
		require.NoError(t, err, identifier)
		assert.Equal(t, reg.User.ID, login.User.ID)
	}

	_, err = svc.Login(ctx, &dto.LoginRequest{UsernameOrEmail: "alice", Password: "wrong1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "secret123"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     dto.RegisterRequest
		wantErr error
	}{
		{"duplicate username", dto.RegisterRequest{Username: "bob", Email: "other@example.com", Password: "secret123"}, ErrUsernameTaken},
		{"duplicate email", dto.RegisterRequest{Username: "bobby", Email: "BOB@example.com", Password: "secret123"}, ErrEmailTaken},
		{"short username", dto.RegisterRequest{Username: "b", Email: "b@example.com", Password: "secret123"}, nil},
		{"bad email", dto.RegisterRequest{Username: "carol", Email: "not-an-email", Password: "secret123"}, nil},
		{"short password", dto.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "a1"}, nil},
		{"password without digit", dto.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "abcdefghij"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestAuthService_RefreshRotatesToken(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: reg.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: reg.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, &dto.LogoutRequest{RefreshToken: refreshed.RefreshToken}))
	_, err = svc.Refresh(ctx, &dto.RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_DisabledAccount(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{Username: "erin", Email: "erin@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(&models.User{}).Where("id = ?", reg.User.ID).Update("is_active", false).Error)

	_, err = svc.Login(ctx, &dto.LoginRequest{UsernameOrEmail: "erin", Password: "secret123"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{Username: "frank", Email: "frank@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &dto.RegisterRequest{Username: "grace", Email: "grace@example.com", Password: "secret123"})
	require.NoError(t, err)

	taken := "grace"
	_, err = svc.UpdateProfile(ctx, reg.User.ID, &dto.UpdateProfileRequest{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.UpdateProfile(ctx, reg.User.ID, &dto.UpdateProfileRequest{CurrentPassword: "wrong", NewPassword: "newpass123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	name := "franklin"
	resp, err := svc.UpdateProfile(ctx, reg.User.ID, &dto.UpdateProfileRequest{
		Username:        &name,
		CurrentPassword: "secret123",
		NewPassword:     "newpass123",
	})
	require.NoError(t, err)
	assert.Equal(t, "franklin", resp.Username)

	_, err = svc.Login(ctx, &dto.LoginRequest{UsernameOrEmail: "franklin", Password: "newpass123"})
	assert.NoError(t, err)
}
