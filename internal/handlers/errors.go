package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/store"
	"github.com/gofiber/fiber/v2"
)

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// serviceError maps errors shared by several services to a response.
// Anything unrecognized is logged and answered with 500.
func serviceError(c *fiber.Ctx, op string, err error) error {
	var verr *services.ValidationError
	var perr *payment.ProviderError
	switch {
	case errors.As(err, &verr):
		return errorJSON(c, fiber.StatusBadRequest, verr.Message)
	case errors.As(err, &perr):
		slog.Warn("payment provider request failed", "op", op, "provider_op", perr.Op, "code", perr.Code, "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "Payment provider unavailable, please retry")
	case errors.Is(err, store.ErrConflict):
		return errorJSON(c, fiber.StatusServiceUnavailable, "Account is being updated, please retry")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrUserNotFound):
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrSmartlinkNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Smartlink not found")
	case errors.Is(err, services.ErrPlatformNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Platform not found")
	}

	slog.Error("request failed", "op", op, "method", c.Method(), "path", c.Path(), "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
}
