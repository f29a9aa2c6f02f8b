package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// WebhookPath receives payment provider deliveries.
const WebhookPath = "/api/payment/webhook"

// Setup registers every route. storage backs the rate limiters and may be
// nil, in which case counters are kept in process memory.
func Setup(
	app *fiber.App,
	cfg *config.Config,
	gate middleware.EntitlementChecker,
	storage fiber.Storage,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	paymentHandler *handlers.PaymentHandler,
	smartlinkHandler *handlers.SmartlinkHandler,
	adminHandler *handlers.AdminHandler,
) {
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP. Provider deliveries are exempt.
	api.Use(newLimiter("api", 60, storage, func(c *fiber.Ctx) bool {
		return c.Path() == WebhookPath
	}))

	api.Get("/health", healthHandler.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(newLimiter("auth", 10, storage, nil))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected routes (JWT required) - apply middleware to individual routes
	// This prevents JWT middleware from affecting public routes
	jwt := middleware.JWTProtected(cfg)
	paid := middleware.SubscriptionRequired(gate)

	api.Post("/auth/logout", jwt, authHandler.Logout)
	api.Get("/auth/me", jwt, authHandler.Me)
	api.Put("/auth/me", jwt, authHandler.UpdateProfile)

	// Payment
	api.Post("/payment/create-checkout-session", jwt, paymentHandler.CreateCheckoutSession)
	api.Get("/payment/verify-session/:session_id", jwt, paymentHandler.VerifySession)
	api.Get("/payment/subscription-status", jwt, paymentHandler.SubscriptionStatus)
	api.Post("/payment/cancel-subscription", jwt, paymentHandler.CancelSubscription)
	api.Post("/payment/webhook", paymentHandler.Webhook)

	// Smartlinks: reads are free, writes need an active subscription
	api.Get("/smartlinks", jwt, smartlinkHandler.List)
	api.Post("/smartlinks", jwt, paid, smartlinkHandler.Create)
	api.Get("/smartlinks/:id", jwt, smartlinkHandler.Get)
	api.Put("/smartlinks/:id", jwt, paid, smartlinkHandler.Update)
	api.Delete("/smartlinks/:id", jwt, paid, smartlinkHandler.Delete)
	api.Get("/smartlinks/:id/analytics", jwt, smartlinkHandler.Analytics)

	// Public smartlink pages and click tracking
	api.Get("/public/smartlinks/:id", smartlinkHandler.Public)
	api.Get("/smartlinks/:id/landing", smartlinkHandler.Public)
	api.Post("/smartlinks/:id/click", smartlinkHandler.Click)
	api.Post("/smartlinks/:id/platforms/:platform_id/click", smartlinkHandler.PlatformClick)

	// Admin panel (JWT + subscription gate + superadmin)
	admin := api.Group("/admin", jwt, paid, middleware.SuperadminRequired(gate))
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id", adminHandler.UpdateUser)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/smartlinks", adminHandler.ListSmartlinks)
	admin.Delete("/smartlinks/:id", adminHandler.DeleteSmartlink)
	admin.Get("/stats", adminHandler.Stats)
	admin.Get("/webhook-events", adminHandler.WebhookEvents)
}

func newLimiter(name string, max int, storage fiber.Storage, next func(*fiber.Ctx) bool) fiber.Handler {
	cfg := limiter.Config{
		Next:              next,
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return name + ":" + c.IP() },
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}
