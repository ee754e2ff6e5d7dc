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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/elliottgriff/SafeVoice/internal/blobstore"
	"github.com/elliottgriff/SafeVoice/internal/config"
	"github.com/elliottgriff/SafeVoice/internal/database"
	"github.com/elliottgriff/SafeVoice/internal/handlers"
	"github.com/elliottgriff/SafeVoice/internal/logging"
	"github.com/elliottgriff/SafeVoice/internal/middleware"
	"github.com/elliottgriff/SafeVoice/internal/routes"
	"github.com/elliottgriff/SafeVoice/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
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
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cleanupDone)

	// State persistence backend
	var blobs blobstore.Store
	switch cfg.StateBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			slog.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		blobs = blobstore.NewRedisStore(client)
		slog.Info("state backend: redis", "addr", cfg.RedisAddr)
	default:
		blobs = blobstore.NewGormStore(db)
		slog.Info("state backend: postgres")
	}

	// Collaborators
	var submitter services.ReportSubmitter = services.AcceptAllSubmitter{}
	if cfg.SubmitURL != "" {
		submitter = services.NewHTTPSubmitter(cfg.SubmitURL, cfg.FetchTimeout)
	}

	var deliverer services.Deliverer = services.LogDeliverer{}
	if cfg.NotifyWebhookURL != "" {
		deliverer = services.NewWebhookDeliverer(cfg.NotifyWebhookURL, cfg.FetchTimeout)
	}

	// Services
	store := services.NewReportStore(blobs, submitter)
	if err := store.Load(context.Background()); err != nil {
		slog.Error("failed to restore report collections", "error", err)
		os.Exit(1)
	}

	center := services.NewNotificationCenter(blobs, deliverer, cfg.DedupWindow, time.Local)
	if err := center.Load(context.Background()); err != nil {
		slog.Error("failed to restore notification inbox", "error", err)
		os.Exit(1)
	}
	store.SetUpdateHook(center.HandleStatusUpdate)
	center.Start(context.Background())

	deviceAuth := services.NewDeviceAuthService(cfg)

	// Reconciler (only with a status feed to poll)
	var reconciler *services.Reconciler
	if cfg.StatusFeedURL != "" {
		source := services.NewHTTPStatusSource(cfg.StatusFeedURL, cfg.FetchTimeout)
		reconciler = services.NewReconciler(store, source, cfg.ReconcileInterval, cfg.FetchTimeout)
		reconciler.Start(context.Background())
	} else {
		slog.Warn("STATUS_FEED_URL not set, reconciler disabled")
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(deviceAuth)
	healthHandler := handlers.NewHealthHandler(db)
	reportHandler := handlers.NewReportHandler(store, center, cfg)
	notificationHandler := handlers.NewNotificationHandler(center)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
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

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg, authHandler, healthHandler, reportHandler, notificationHandler)

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

	// Stop the poll loop first so no apply is in flight when the store's
	// final snapshots land.
	if reconciler != nil {
		reconciler.Stop()
	}
	center.Stop()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
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
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
