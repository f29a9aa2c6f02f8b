package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	list, err := h.adminService.ListUsers(c.UserContext(), c.Query("search"), c.QueryInt("page", 1), c.QueryInt("per_page", 0))
	if err != nil {
		return serviceError(c, "admin.ListUsers", err)
	}
	return c.JSON(list)
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	actorID, targetID, err := adminTarget(c)
	if err != nil {
		return err
	}

	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.adminService.UpdateUser(c.UserContext(), actorID, targetID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrSelfModification):
			return errorJSON(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, services.ErrLiveSubscription):
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		return serviceError(c, "admin.UpdateUser", err)
	}
	return c.JSON(resp)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	actorID, targetID, err := adminTarget(c)
	if err != nil {
		return err
	}

	if err := h.adminService.DeleteUser(c.UserContext(), actorID, targetID); err != nil {
		if errors.Is(err, services.ErrSelfModification) {
			return errorJSON(c, fiber.StatusForbidden, err.Error())
		}
		return serviceError(c, "admin.DeleteUser", err)
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

func (h *AdminHandler) ListSmartlinks(c *fiber.Ctx) error {
	list, err := h.adminService.ListSmartlinks(c.UserContext(), c.Query("search"), c.QueryInt("page", 1), c.QueryInt("per_page", 0))
	if err != nil {
		return serviceError(c, "admin.ListSmartlinks", err)
	}
	return c.JSON(list)
}

func (h *AdminHandler) DeleteSmartlink(c *fiber.Ctx) error {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.adminService.DeleteSmartlink(c.UserContext(), actorID, c.Params("id")); err != nil {
		return serviceError(c, "admin.DeleteSmartlink", err)
	}
	return c.JSON(fiber.Map{"message": "Smartlink deleted"})
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.adminService.Stats(c.UserContext())
	if err != nil {
		return serviceError(c, "admin.Stats", err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) WebhookEvents(c *fiber.Ctx) error {
	list, err := h.adminService.ListWebhookEvents(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("per_page", 0))
	if err != nil {
		return serviceError(c, "admin.WebhookEvents", err)
	}
	return c.JSON(list)
}

// adminTarget returns the acting superadmin and the :id path user.
func adminTarget(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	actorID, err := middleware.GetUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	return actorID, targetID, nil
}
