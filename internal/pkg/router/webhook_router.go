package router

import (
	"github.com/PricePilot/PricePilot/app/controllers"
	"github.com/PricePilot/PricePilot/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.SubscriptionWebhookRoute, controllers.HandleSubscriptionWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
