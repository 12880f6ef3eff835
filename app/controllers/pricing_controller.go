package controllers

import (
	"context"
	"time"

	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/middleware"
	"github.com/PricePilot/PricePilot/internal/pkg/pricing"
	"github.com/PricePilot/PricePilot/internal/pkg/quota"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type priceUpdateRequest struct {
	Products   []pricing.ProductSelection `json:"products"`
	Adjustment pricing.Adjustment         `json:"adjustment"`
}

// HandlePriceCheck runs the quota feasibility check for a prospective
// selection without touching the platform.
func HandlePriceCheck(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	var req priceUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Invalid request body",
		})
	}

	productIDs := make([]string, 0, len(req.Products))
	for _, p := range req.Products {
		productIDs = append(productIDs, p.ID)
	}

	engine := quota.NewEngine(repository.GetGlobalFactory().GetSubscriptionRepository())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feasibility, sub, err := engine.CheckShop(ctx, shop, productIDs)
	if err != nil {
		fiberlog.Errorf("pricing: quota check failed for %s: %v", shop, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Quota could not be checked",
		})
	}

	return c.JSON(fiber.Map{
		"feasibility": feasibility,
		"usage_count": sub.UsageCount,
		"usage_limit": sub.UsageLimit,
		"plan_name":   sub.PlanName,
	})
}

// HandlePriceUpdate executes a bulk price update: validation and quota
// rejection happen before any platform call, after that failures are
// per-variant and the batch always runs to completion.
func HandlePriceUpdate(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	var req priceUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Invalid request body",
		})
	}

	factory := repository.GetGlobalFactory()
	orch := pricing.NewOrchestrator(
		shopify.NewClientFromEnv(shop),
		quota.NewEngine(factory.GetSubscriptionRepository()),
		factory.GetPricingHistoryRepository(),
	)

	// No batch deadline: large selections serialize into many sequential
	// platform calls and each carries its own client timeout.
	result := orch.Execute(c.Context(), shop, req.Products, req.Adjustment)

	switch {
	case result.OK:
		invalidateSubscriptionCache(shop)
		return c.JSON(result)
	case result.QuotaExceeded:
		return c.Status(fiber.StatusPaymentRequired).JSON(result)
	default:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
}
