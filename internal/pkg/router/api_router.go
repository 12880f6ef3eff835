package router

import (
	"github.com/PricePilot/PricePilot/app/controllers"
	"github.com/PricePilot/PricePilot/internal/pkg/constants"
	"github.com/PricePilot/PricePilot/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:     120,
		Storage: newLimiterStorage(),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests, slow down",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
	})

	// The billing confirm landing comes from the platform with only a
	// shop query parameter, before any admin headers exist.
	v1.Get("/billing/confirm", controllers.HandleBillingConfirm)

	shopScoped := v1.Group("", middleware.ShopContextMiddleware())
	shopScoped.Get("/products", controllers.HandleListProducts)
	shopScoped.Post("/prices/check", controllers.HandlePriceCheck)
	shopScoped.Post("/prices/update", controllers.HandlePriceUpdate)
	shopScoped.Get("/history", controllers.HandleListHistory)
	shopScoped.Get("/subscription", controllers.HandleGetSubscription)
	shopScoped.Get("/billing/plans", controllers.HandleListPlans)
	shopScoped.Post("/billing/subscribe", controllers.HandleSubscribe)
	shopScoped.Post("/billing/cancel", controllers.HandleCancelSubscription)
	shopScoped.Post("/billing/sync", controllers.HandleBillingSync)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
