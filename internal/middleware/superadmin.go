package middleware

import (
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// SuperadminRequired checks the stored role flag, not the token claim, so a
// revoked superadmin loses access before their token expires.
func SuperadminRequired(checker EntitlementChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, _, err := loadAccount(c, checker)
		if err != nil {
			return err
		}
		if !user.IsSuperadmin {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Superadmin access required",
			})
		}
		return c.Next()
	}
}
