package middleware

import (
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the dashboard origins to call the API. Paths in serverOnly are
// called by the payment provider and never by a browser, so they get no
// CORS headers.
func CORS(cfg *config.Config, serverOnly ...string) fiber.Handler {
	origins := cfg.CORSOrigins
	if origins == "" {
		origins = cfg.FrontendURL
	}
	return cors.New(cors.Config{
		Next: func(c *fiber.Ctx) bool {
			for _, p := range serverOnly {
				if c.Path() == p {
					return true
				}
			}
			return false
		},
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    fiber.HeaderXRequestID,
		AllowCredentials: false,
		MaxAge:           600,
	})
}

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		c.Set(fiber.HeaderXFrameOptions, "DENY")
		c.Set(fiber.HeaderXXSSProtection, "1; mode=block")
		return c.Next()
	}
}
