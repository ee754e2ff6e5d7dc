package routes

import (
	"time"

	"github.com/elliottgriff/SafeVoice/internal/config"
	"github.com/elliottgriff/SafeVoice/internal/handlers"
	"github.com/elliottgriff/SafeVoice/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	reportHandler *handlers.ReportHandler,
	notificationHandler *handlers.NotificationHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Device sessions — public, stricter rate limit
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/device", authHandler.DeviceToken)

	// Report lifecycle (device token required)
	reports := api.Group("/reports", middleware.JWTProtected(cfg))
	reports.Post("/drafts", reportHandler.CreateDraft)
	reports.Put("/drafts/:id", reportHandler.SaveDraft)
	reports.Get("/drafts", reportHandler.ListDrafts)
	reports.Post("/submit", reportHandler.Submit)
	reports.Get("/", reportHandler.ListActive)
	reports.Get("/:id", reportHandler.Get)
	reports.Delete("/:id", reportHandler.Delete)

	// Notification inbox (device token required)
	notifications := api.Group("/notifications", middleware.JWTProtected(cfg))
	notifications.Get("/pending", notificationHandler.ListPending)
	notifications.Get("/read", notificationHandler.ListRead)
	notifications.Get("/badge", notificationHandler.Badge)
	notifications.Post("/:id/read", notificationHandler.MarkAsRead)
	notifications.Delete("/", notificationHandler.ClearAll)

	// Status-feed injection for case managers (shared admin token)
	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	admin.Get("/reports", reportHandler.ListActive)
	admin.Post("/reports/:id/status", reportHandler.AddStatusUpdate)
}
