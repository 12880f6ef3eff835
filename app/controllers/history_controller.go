package controllers

import (
	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const historyDefaultPageSize = 25
const historyMaxPageSize = 100

// HandleListHistory returns the shop's price change log, newest first.
func HandleListHistory(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", historyDefaultPageSize)
	if limit < 1 || limit > historyMaxPageSize {
		limit = historyDefaultPageSize
	}

	repo := repository.GetGlobalFactory().GetPricingHistoryRepository()
	entries, err := repo.ListByShop(shop, (page-1)*limit, limit)
	if err != nil {
		fiberlog.Errorf("history: listing failed for %s: %v", shop, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "History could not be loaded",
		})
	}
	total, err := repo.CountByShop(shop)
	if err != nil {
		fiberlog.Errorf("history: count failed for %s: %v", shop, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "History could not be loaded",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"page":    page,
		"limit":   limit,
		"total":   total,
	})
}
