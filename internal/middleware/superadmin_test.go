package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Authorize(ctx context.Context, userID uuid.UUID) (*models.User, entitlement.Result, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Get(1).(entitlement.Result), args.Error(2)
}

func (m *mockChecker) ExpireLapsed(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func TestSuperadminRequired_SkipsLazyExpiryForActive(t *testing.T) {
	user := newUser(func(u *models.User) { u.IsSuperadmin = true })
	result := entitlement.Evaluate(true, user.Billing(), time.Now())

	checker := &mockChecker{}
	checker.On("Authorize", mock.Anything, user.ID).Return(user, result, nil).Once()

	app := newGateApp(checker)
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, user.ID))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	checker.AssertExpectations(t)
	checker.AssertNotCalled(t, "ExpireLapsed", mock.Anything, mock.Anything)
}
