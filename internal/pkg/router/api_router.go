package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/controllers"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/alerts"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiterConfig()))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
	})

	tc := controllers.NewTranscribeController(alertStore())

	protected := v1.Group("", middleware.BearerAuthMiddleware())
	protected.Post("/transcribe", tc.HandleTranscribe)
	protected.Get("/account", tc.HandleGetAccount)

	// Provider webhooks authenticate via payload signature, not bearer token.
	bc := controllers.NewBillingWebhookController()
	v1.Post("/webhooks/patreon", bc.HandlePatreonWebhook)

	sc := controllers.NewStatsController()
	v1.Get("/stats", middleware.InternalKeyAuthMiddleware(), sc.HandleGetStats)
}

// limiterConfig backs the rate limiter with the shared cache server when one
// is configured, so limits hold across instances.
func limiterConfig() limiter.Config {
	cfg := limiter.Config{
		Max:        60,
		Expiration: time.Minute,
	}
	if host := env.GetEnv("CACHE_HOST", ""); host != "" {
		port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
		if err != nil {
			port = 6379
		}
		cfg.Storage = redisstorage.New(redisstorage.Config{
			Host: host,
			Port: port,
		})
	}
	return cfg
}

// alertStore shares alert cooldowns across instances when a cache server is
// configured; otherwise cooldowns live in process memory.
func alertStore() alerts.Store {
	if env.GetEnv("CACHE_HOST", "") != "" {
		return alerts.NewRedisStore()
	}
	return alerts.NewMemoryStore()
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
