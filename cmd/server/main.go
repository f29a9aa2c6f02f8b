package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/payment"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/smartlinks-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.StripeSecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY is not set, checkout requests will fail")
	}
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is not set, payment webhooks will be rejected")
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewJSONHandler(os.Stdout, cfg.AppEnv),
		pgLogHandler,
	)))

	// Log cleanup
	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Rate limiter storage (Redis when configured, in-memory otherwise)
	var limiterStorage fiber.Storage
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.Connect(ctx, cfg)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, using in-memory rate limiting", "addr", cfg.RedisAddr, "error", err)
		} else {
			limiterStorage = cache.NewRedisStorage(redisClient, "smartlinks:limiter:")
			slog.Info("rate limiter backed by redis", "addr", cfg.RedisAddr)
		}
	}

	// Payment provider
	provider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceID:       cfg.StripePriceID,
		UnitAmount:    cfg.SubscriptionPriceCents,
		Currency:      cfg.SubscriptionCurrency,
	})

	// Stores and services
	accounts := store.NewAccountStore(db)
	webhookEvents := store.NewWebhookEventStore(db)

	authService := services.NewAuthService(db, cfg)
	subscriptionService := services.NewSubscriptionService(accounts, webhookEvents, provider, cfg)
	smartlinkService := services.NewSmartlinkService(db)
	adminService := services.NewAdminService(db, subscriptionService, smartlinkService, webhookEvents)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(db)
	paymentHandler := handlers.NewPaymentHandler(subscriptionService)
	smartlinkHandler := handlers.NewSmartlinkHandler(smartlinkService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg, routes.WebhookPath))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, cfg, subscriptionService, limiterStorage,
		authHandler, healthHandler, paymentHandler, smartlinkHandler, adminHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID), "error", err.Error())
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
