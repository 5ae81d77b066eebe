package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"signage-server/config"
	"signage-server/handlers"
	"signage-server/middleware"
	"signage-server/models"
	"signage-server/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := services.InitMongo(ctx, cfg.MongoURI)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	store := services.NewStore(client, cfg.DatabaseName)
	if err := store.EnsureIndexes(ctx); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		// Continue anyway - the server can still run without indexes
	}

	// Core components
	sessions := services.NewSessionStore(cfg.SessionTTL)
	csrf := services.NewCSRFManager(cfg.CSRFTTL)
	defer csrf.Close()

	hub := services.NewHub()
	registry := services.NewDisplayRegistry(cfg.HeartbeatTimeout)
	settings := services.NewSettingsStore()
	alerts := services.NewAlertState()
	audit := services.NewAuditLogger(store.Database())

	// Seed in-memory state from the persisted snapshot
	persistedSettings, persistedDisplays, err := store.Load(ctx)
	if err != nil {
		slog.Error("Failed to load persisted state", "error", err)
		// Continue anyway - start with an empty roster
	} else {
		settings.Seed(persistedSettings)
		registry.Seed(persistedDisplays)
	}

	// Debounced persistence: at most one write per flush delay
	settingsFlusher := services.NewFlusher("settings", cfg.SaveDelay, func(ctx context.Context) error {
		return store.SaveSettings(ctx, settings.Get())
	})
	displaysFlusher := services.NewFlusher("displays", cfg.SaveDelay, func(ctx context.Context) error {
		return store.SaveDisplays(ctx, registry.Summarize())
	})

	// Roster changes broadcast once per batch and mark state dirty
	registry.SetHooks(func() {
		hub.Publish(models.EventDisplaysUpdate, registry.Summarize())
	}, displaysFlusher.Schedule)

	// Background loops
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	registry.StartReaper(bgCtx, cfg.ReapInterval)
	sessions.StartSweep(bgCtx, cfg.SweepInterval)

	generalLimiter := services.NewRateLimiter(cfg.GeneralRate)
	authLimiter := services.NewRateLimiter(cfg.AuthRate)
	apiLimiter := services.NewRateLimiter(cfg.APIRate)
	generalLimiter.StartSweep(bgCtx, cfg.SweepInterval)
	authLimiter.StartSweep(bgCtx, cfg.SweepInterval)
	apiLimiter.StartSweep(bgCtx, cfg.SweepInterval)

	app := &handlers.App{
		Config:          cfg,
		Sessions:        sessions,
		CSRF:            csrf,
		Registry:        registry,
		Hub:             hub,
		Settings:        settings,
		Alerts:          alerts,
		Audit:           audit,
		SettingsFlusher: settingsFlusher,
		StartedAt:       time.Now(),
	}

	// Create Fiber app
	srv := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error":   "internal",
				"message": err.Error(),
			})
		},
	})

	// Middleware
	srv.Use(recover.New())

	srv.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Session-Token, X-CSRF-Token, X-API-Key",
		AllowCredentials: true,
		ExposeHeaders:    "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset",
		MaxAge:           86400,
	}))

	srv.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	general := middleware.RateLimit(generalLimiter)
	requireAuth := middleware.RequireAuth(sessions, cfg.APIKey)
	requireCSRF := middleware.RequireCSRF(csrf)

	// Auth routes (tight limiter against credential stuffing)
	auth := srv.Group("/auth", middleware.RateLimit(authLimiter))
	auth.Post("/login", app.Login)
	auth.Post("/logout", app.Logout)
	auth.Get("/check", requireAuth, app.CheckSession)

	// Health check
	srv.Get("/health", app.Health)

	// Display-facing routes: no credentials, displays self-register
	api := srv.Group("/api")
	api.Get("/status", general, app.Status)
	api.Post("/heartbeat", general, app.Heartbeat)
	api.Get("/stream", general, app.StreamUpgrade, websocket.New(app.HandleStream))

	// Admin write surface: session or API key, CSRF for session writers
	displays := api.Group("/displays", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF)
	displays.Get("/", app.ListDisplays)
	displays.Delete("/offline", app.DeleteOfflineDisplays)
	displays.Put("/:id", app.UpdateDisplay)
	displays.Delete("/:id", app.DeleteDisplay)
	displays.Post("/:id/command", app.SendCommand)

	settingsGroup := api.Group("/settings", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF)
	settingsGroup.Get("/", app.GetSettings)
	settingsGroup.Put("/", app.UpdateSettings)

	api.Post("/alert", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF, app.RaiseAlert)
	api.Delete("/alert", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF, app.CancelAlert)
	api.Post("/dismissal", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF, app.UpdateDismissal)
	api.Delete("/dismissal", middleware.RateLimit(apiLimiter), requireAuth, requireCSRF, app.ClearDismissal)

	// Start server
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Shutdown: notify displays, flush pending writes, stop accepting
	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	slog.Info("Shutting down")
	cancelBg()
	hub.Shutdown()

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFlush()
	if err := settingsFlusher.Flush(flushCtx); err != nil {
		slog.Error("Failed to flush settings", "error", err)
	}
	if err := displaysFlusher.Flush(flushCtx); err != nil {
		slog.Error("Failed to flush displays", "error", err)
	}

	if err := srv.ShutdownWithTimeout(5 * time.Second); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}
