package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShopTestApp(t *testing.T, seen *string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get("/probe", ShopContextMiddleware(), func(c *fiber.Ctx) error {
		*seen = GetShop(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestShopContextMiddleware_HeaderWins(t *testing.T) {
	var seen string
	app := newShopTestApp(t, &seen)

	req := httptest.NewRequest(http.MethodGet, "/probe?shop=other.myshopify.com", nil)
	req.Header.Set("X-Shop-Domain", "Example.MyShopify.com")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "example.myshopify.com", seen)
}

func TestShopContextMiddleware_QueryFallback(t *testing.T) {
	var seen string
	app := newShopTestApp(t, &seen)

	req := httptest.NewRequest(http.MethodGet, "/probe?shop=example.myshopify.com", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "example.myshopify.com", seen)
}

func TestShopContextMiddleware_MissingShop(t *testing.T) {
	var seen string
	app := newShopTestApp(t, &seen)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, seen)
}

func TestShopContextMiddleware_InvalidShop(t *testing.T) {
	var seen string
	app := newShopTestApp(t, &seen)

	for _, shop := range []string{"no-dot", "bad domain.com", "a.b", "exämple.myshopify.com"} {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("X-Shop-Domain", shop)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "shop %q should be rejected", shop)
	}
}

func TestGetShop_WithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/bare", func(c *fiber.Ctx) error {
		assert.Empty(t, GetShop(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/bare", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
