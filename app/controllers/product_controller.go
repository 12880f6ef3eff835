package controllers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PricePilot/PricePilot/internal/pkg/cache"
	"github.com/PricePilot/PricePilot/internal/pkg/middleware"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const productPageCacheTTL = 30 * time.Second

// HandleListProducts serves one page of the shop's products. Cursors are
// passed through opaquely; pages are cached briefly so table paging back
// and forth does not hammer the platform API.
func HandleListProducts(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	args := shopify.PageArgs{
		First:  c.QueryInt("first", 0),
		After:  c.Query("after"),
		Last:   c.QueryInt("last", 0),
		Before: c.Query("before"),
		Query:  c.Query("query"),
	}
	if args.First < 0 || args.First > 100 || args.Last < 0 || args.Last > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Page size must be between 1 and 100",
		})
	}

	cacheKey := cache.ProductPageKey(shop, pageSignature(args))
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	client := shopify.NewClientFromEnv(shop)
	page, err := client.ListProducts(c.Context(), args)
	if err != nil {
		fiberlog.Errorf("products: listing failed for %s: %v", shop, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "upstream_error",
			"message": "Products could not be loaded",
		})
	}

	if raw, err := json.Marshal(page); err == nil {
		if err := cache.Set(cacheKey, string(raw), productPageCacheTTL); err != nil {
			fiberlog.Warnf("cache: product page write failed for %s: %v", shop, err)
		}
	}
	return c.JSON(page)
}

func pageSignature(args shopify.PageArgs) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d|%s|%s", args.First, args.After, args.Last, args.Before, args.Query)))
	return hex.EncodeToString(sum[:8])
}
