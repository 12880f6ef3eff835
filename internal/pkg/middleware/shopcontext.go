package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const shopLocalsKey = "SHOP_DOMAIN"

// ShopContextMiddleware resolves the tenant for every API request from the
// X-Shop-Domain header (or the shop query parameter as a fallback) and
// rejects requests without one. Session-token verification happens in the
// auth layer in front of this app; here the shop domain is the tenant key.
func ShopContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		shop := strings.ToLower(strings.TrimSpace(c.Get("X-Shop-Domain")))
		if shop == "" {
			shop = strings.ToLower(strings.TrimSpace(c.Query("shop")))
		}
		if shop == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Missing shop domain",
			})
		}
		if !isValidShopDomain(shop) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid shop domain",
			})
		}
		c.Locals(shopLocalsKey, shop)
		return c.Next()
	}
}

// GetShop returns the shop domain resolved for this request, or "" when
// the middleware did not run.
func GetShop(c *fiber.Ctx) string {
	if shop, ok := c.Locals(shopLocalsKey).(string); ok {
		return shop
	}
	return ""
}

func isValidShopDomain(shop string) bool {
	if len(shop) < 4 || len(shop) > 255 {
		return false
	}
	if !strings.Contains(shop, ".") {
		return false
	}
	for _, r := range shop {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}
