package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubFox/app/controllers"
	"github.com/ManuelReschke/SubFox/internal/pkg/constants"
)

type HttpRouter struct {
	webhook *controllers.WebhookController
}

func NewHttpRouter(webhook *controllers.WebhookController) *HttpRouter {
	return &HttpRouter{webhook: webhook}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// The webhook endpoint is deliberately outside the rate-limited API
	// group: the provider controls delivery timing, and throttling it only
	// causes retry storms. Authentication is the payload signature itself.
	app.Post(constants.WebhookRoute, h.webhook.HandleProviderWebhook)

	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
