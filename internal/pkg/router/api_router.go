package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/SubFox/app/controllers"
	"github.com/ManuelReschke/SubFox/internal/pkg/cache"
	"github.com/ManuelReschke/SubFox/internal/pkg/constants"
	"github.com/ManuelReschke/SubFox/internal/pkg/env"
	"github.com/ManuelReschke/SubFox/internal/pkg/middleware"
)

type ApiRouter struct {
	users *controllers.UserController
	stats *controllers.StatsController
}

func NewApiRouter(users *controllers.UserController, stats *controllers.StatsController) *ApiRouter {
	return &ApiRouter{users: users, stats: stats}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes (service-to-service, API key protected)
	v1 := api.Group("/"+constants.APIV1Path, middleware.APIKeyAuthMiddleware())
	v1.Post("/users", h.users.HandleCreateUser)
	v1.Get("/users/:id/subscription", h.users.HandleGetSubscription)
	v1.Get("/stats", h.stats.HandleGetStats)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Connection details come from the existing cache client.
func newLimiterStorage() *redisstorage.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	if cacheClient := cache.GetClient(); cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // Separate database for rate limiting (cache uses DB 0)
		Reset:    false,
	})
}
