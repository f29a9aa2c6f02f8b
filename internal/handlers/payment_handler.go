package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewPaymentHandler(subscriptionService *services.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{subscriptionService: subscriptionService}
}

func (h *PaymentHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	resp, err := h.subscriptionService.CreateCheckout(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySubscribed) || errors.Is(err, services.ErrSuperadminCheckout) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		return serviceError(c, "payment.CreateCheckoutSession", err)
	}
	return c.JSON(resp)
}

func (h *PaymentHandler) VerifySession(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	resp, err := h.subscriptionService.VerifySession(c.UserContext(), userID, c.Params("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSessionID):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrSessionMismatch):
			return errorJSON(c, fiber.StatusForbidden, err.Error())
		}
		var perr *payment.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == fiber.StatusNotFound {
			return errorJSON(c, fiber.StatusNotFound, "Checkout session not found")
		}
		return serviceError(c, "payment.VerifySession", err)
	}
	return c.JSON(resp)
}

// Webhook acknowledges every delivery whose signature verifies. Only
// failures worth a redelivery are answered with 5xx.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get("Stripe-Signature")

	err := h.subscriptionService.IngestEvent(c.UserContext(), payload, signature)
	switch {
	case err == nil:
		return c.JSON(dto.WebhookAck{Received: true})
	case errors.Is(err, payment.ErrWebhookSecretMissing):
		slog.Error("payment webhook received but no webhook secret is configured")
		return errorJSON(c, fiber.StatusBadRequest, "Webhook secret not configured")
	case errors.Is(err, payment.ErrInvalidSignature):
		slog.Warn("payment webhook signature rejected", "ip", c.IP())
		return errorJSON(c, fiber.StatusBadRequest, "Invalid signature")
	}
	return errorJSON(c, fiber.StatusInternalServerError, "Failed to process webhook event")
}

func (h *PaymentHandler) SubscriptionStatus(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	resp, err := h.subscriptionService.Status(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "payment.SubscriptionStatus", err)
	}
	return c.JSON(resp)
}

func (h *PaymentHandler) CancelSubscription(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	user, err := h.subscriptionService.Cancel(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoSubscription) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		return serviceError(c, "payment.CancelSubscription", err)
	}
	return c.JSON(fiber.Map{"message": "Subscription cancelled", "user": user})
}
