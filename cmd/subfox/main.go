package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/SubFox/app/controllers"
	"github.com/ManuelReschke/SubFox/app/repository"
	"github.com/ManuelReschke/SubFox/internal/pkg/billing"
	"github.com/ManuelReschke/SubFox/internal/pkg/cache"
	"github.com/ManuelReschke/SubFox/internal/pkg/database"
	"github.com/ManuelReschke/SubFox/internal/pkg/env"
	"github.com/ManuelReschke/SubFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/SubFox/internal/pkg/notification"
	"github.com/ManuelReschke/SubFox/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Graceful shutdown: drain the job queue before the process exits.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutdown signal received")
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	// Required configuration: refusing to start beats silently accepting
	// unverifiable webhooks.
	webhookSecret := env.MustGetEnv("STRIPE_WEBHOOK_SECRET")
	stripeClient := billing.NewStripeClientFromEnv()

	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	dispatcher := notification.NewSMTPDispatcher()
	manager := jobqueue.InitManager(dispatcher, stripeClient, repos.PriceMapping)
	manager.Start()

	tolerance := billing.DefaultSignatureTolerance
	if v, err := time.ParseDuration(env.GetEnv("STRIPE_SIGNATURE_TOLERANCE", "")); err == nil {
		tolerance = v
	}

	billingRepo := billing.NewRepositoryFromRepos(repos)
	billingService := billing.NewService(billingRepo, manager, webhookSecret, tolerance)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:   1 << 20, // webhook payloads are small, 1 MiB is generous
		ReadTimeout: 30 * time.Second,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Webhook: controllers.NewWebhookController(billingService),
		Users:   controllers.NewUserController(repos.User, repos.Subscription, repos.PriceMapping),
		Stats:   controllers.NewStatsController(),
	})

	return app
}
