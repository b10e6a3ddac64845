package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/redrule/reddigen/app/repository"
	"github.com/redrule/reddigen/internal/pkg/cache"
	"github.com/redrule/reddigen/internal/pkg/database"
	"github.com/redrule/reddigen/internal/pkg/env"
	"github.com/redrule/reddigen/internal/pkg/jobqueue"
	"github.com/redrule/reddigen/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Drain the job queue before the process exits so in-flight webhook
	// events finish or land back on the queue.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitGlobalFactory(database.GetDB())

	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName:   "reddigen",
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app
}
