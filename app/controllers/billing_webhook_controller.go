package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/billing"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/database"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
)

// BillingWebhookController receives Patreon webhook deliveries and keeps
// subscription tiers in sync with pledge state.
type BillingWebhookController struct {
	secret  string
	service func() *billing.Service
}

func NewBillingWebhookController() *BillingWebhookController {
	return &BillingWebhookController{
		secret: env.GetEnv("PATREON_WEBHOOK_SECRET", ""),
		service: func() *billing.Service {
			return billing.NewServiceFromDB(database.GetDB())
		},
	}
}

// HandlePatreonWebhook verifies and processes a members webhook delivery.
func (bc *BillingWebhookController) HandlePatreonWebhook(c *fiber.Ctx) error {
	if strings.TrimSpace(bc.secret) == "" {
		log.Error("[Billing] PATREON_WEBHOOK_SECRET is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook is not configured", "code": "CONFIG_ERROR"})
	}

	payload := c.Body()
	if !billing.VerifyPatreonWebhookSignature(payload, c.Get("X-Patreon-Signature"), bc.secret) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid webhook signature", "code": "INVALID_SIGNATURE"})
	}

	eventType := c.Get("X-Patreon-Event")
	applied, err := bc.service().ProcessPatreonMemberEvent(eventType, payload)
	if err != nil {
		log.Errorf("[Billing] failed to process %s webhook: %v", eventType, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not process webhook", "code": "WEBHOOK_ERROR"})
	}

	return c.JSON(fiber.Map{"received": true, "applied": applied})
}
