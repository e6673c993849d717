package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubFox/internal/pkg/billing"
)

// WebhookController terminates the provider webhook endpoint. It owns no
// business logic; the billing service decides the outcome and the
// controller only translates it to a status code the provider understands
// (non-2xx means "redeliver later").
type WebhookController struct {
	svc *billing.Service
}

// NewWebhookController creates the controller around an injected service.
func NewWebhookController(svc *billing.Service) *WebhookController {
	return &WebhookController{svc: svc}
}

// HandleProviderWebhook processes POST /webhook deliveries.
func (wc *WebhookController) HandleProviderWebhook(c *fiber.Ctx) error {
	// The raw bytes must be captured before any parsing; a re-serialized
	// body never reproduces the signed payload.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := wc.svc.ProcessWebhook(ctx, rawBody, signature)
	switch {
	case errors.Is(result.Err, billing.ErrInvalidSignature), errors.Is(result.Err, billing.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	case result.Err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}
