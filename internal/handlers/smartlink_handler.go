package handlers

import (
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SmartlinkHandler struct {
	smartlinkService *services.SmartlinkService
}

func NewSmartlinkHandler(smartlinkService *services.SmartlinkService) *SmartlinkHandler {
	return &SmartlinkHandler{smartlinkService: smartlinkService}
}

func (h *SmartlinkHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.CreateSmartlinkRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	link, err := h.smartlinkService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return serviceError(c, "smartlink.Create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (h *SmartlinkHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	links, err := h.smartlinkService.ListByUser(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "smartlink.List", err)
	}
	return c.JSON(links)
}

func (h *SmartlinkHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	link, err := h.smartlinkService.GetOwned(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return serviceError(c, "smartlink.Get", err)
	}
	return c.JSON(link)
}

func (h *SmartlinkHandler) Update(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.UpdateSmartlinkRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	link, err := h.smartlinkService.Update(c.UserContext(), userID, c.Params("id"), &req)
	if err != nil {
		return serviceError(c, "smartlink.Update", err)
	}
	return c.JSON(link)
}

func (h *SmartlinkHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.smartlinkService.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return serviceError(c, "smartlink.Delete", err)
	}
	return c.JSON(fiber.Map{"message": "Smartlink deleted"})
}

func (h *SmartlinkHandler) Analytics(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	stats, err := h.smartlinkService.Analytics(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return serviceError(c, "smartlink.Analytics", err)
	}
	return c.JSON(stats)
}

// Public returns a smartlink to anonymous visitors and counts the view.
func (h *SmartlinkHandler) Public(c *fiber.Ctx) error {
	link, err := h.smartlinkService.View(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, "smartlink.Public", err)
	}
	return c.JSON(link)
}

func (h *SmartlinkHandler) Click(c *fiber.Ctx) error {
	clicks, err := h.smartlinkService.Click(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, "smartlink.Click", err)
	}
	return c.JSON(fiber.Map{"message": "Click recorded", "clicks": clicks})
}

func (h *SmartlinkHandler) PlatformClick(c *fiber.Ctx) error {
	platformID, err := uuid.Parse(c.Params("platform_id"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid platform id")
	}

	resp, err := h.smartlinkService.ClickPlatform(c.UserContext(), c.Params("id"), platformID)
	if err != nil {
		return serviceError(c, "smartlink.PlatformClick", err)
	}
	return c.JSON(resp)
}
