package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/entitlement"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	accountKey     = "account"
	entitlementKey = "entitlement"
)

// lazyExpireTimeout bounds the background write started by the gate.
const lazyExpireTimeout = 5 * time.Second

// EntitlementChecker loads an account with its access decision and persists
// expiries the decision observed.
type EntitlementChecker interface {
	Authorize(ctx context.Context, userID uuid.UUID) (*models.User, entitlement.Result, error)
	ExpireLapsed(ctx context.Context, userID uuid.UUID) error
}

// SubscriptionRequired lets the request through only for entitled accounts
// and answers 402 otherwise. Must run after JWTProtected.
func SubscriptionRequired(checker EntitlementChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, result, err := loadAccount(c, checker)
		if err != nil {
			return err
		}
		if result.Entitled {
			return c.Next()
		}

		if result.ObservedExpired {
			go expireLapsed(checker, user.ID)
		}

		status := user.SubscriptionStatus
		if result.ObservedExpired {
			status = string(entitlement.StatusExpired)
		}
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.PaymentRequiredResponse{
			Error:              true,
			Message:            paymentRequiredMessage(result.Reason),
			Reason:             string(result.Reason),
			SubscriptionStatus: status,
			RequiresPayment:    true,
		})
	}
}

// CurrentAccount returns the account loaded by an earlier gate in the chain.
func CurrentAccount(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(accountKey).(*models.User)
	return user, ok && user != nil
}

// loadAccount reads the caller's account once per request and caches it
// with its access decision for later handlers in the chain.
func loadAccount(c *fiber.Ctx, checker EntitlementChecker) (*models.User, entitlement.Result, error) {
	if user, ok := CurrentAccount(c); ok {
		result, _ := c.Locals(entitlementKey).(entitlement.Result)
		return user, result, nil
	}

	userID, err := GetUserID(c)
	if err != nil {
		return nil, entitlement.Result{}, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}

	user, result, err := checker.Authorize(c.UserContext(), userID)
	if err != nil {
		return nil, entitlement.Result{}, accountError(err)
	}
	if !user.IsActive {
		return nil, entitlement.Result{}, fiber.NewError(fiber.StatusUnauthorized, "Account is disabled")
	}

	c.Locals(accountKey, user)
	c.Locals(entitlementKey, result)
	return user, result, nil
}

func accountError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "Account not found")
	}
	return err
}

func expireLapsed(checker EntitlementChecker, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), lazyExpireTimeout)
	defer cancel()
	if err := checker.ExpireLapsed(ctx, userID); err != nil {
		slog.Warn("lazy expiry from access gate failed", "user_id", userID.String(), "error", err)
	}
}

func paymentRequiredMessage(reason entitlement.Reason) string {
	if reason == entitlement.ReasonSubscriptionExpired {
		return "Your subscription has expired. Please renew to continue."
	}
	return "An active subscription is required for this action."
}
