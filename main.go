package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/repository"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/cache"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/database"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "dream-interpreter-api",
		BodyLimit: 1 << 20, // transcribe requests carry URLs, not audio
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
