package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/billing"
	"github.com/PricePilot/PricePilot/internal/pkg/cache"
	"github.com/PricePilot/PricePilot/internal/pkg/database"
	"github.com/PricePilot/PricePilot/internal/pkg/env"
	"github.com/PricePilot/PricePilot/internal/pkg/middleware"
	"github.com/PricePilot/PricePilot/internal/pkg/plans"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const subscriptionCacheTTL = 60 * time.Second

type subscribeRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// HandleListPlans returns the plan catalog together with the shop's current
// subscription and per-plan trial eligibility.
func HandleListPlans(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: subscription load failed for %s: %v", shop, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Subscription could not be loaded",
		})
	}

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type planView struct {
		plans.Plan
		Trial billing.TrialEligibility `json:"trial"`
	}
	catalog := make([]planView, 0, len(plans.All()))
	for _, p := range plans.All() {
		catalog = append(catalog, planView{
			Plan:  p,
			Trial: svc.TrialEligibility(ctx, shop, p.Name),
		})
	}

	return c.JSON(fiber.Map{
		"plans":        catalog,
		"subscription": sub,
	})
}

// HandleSubscribe starts a plan change. Paid plans come back with a
// confirmation URL the merchant must visit; the record stays pending until
// the webhook or a sync reports approval.
func HandleSubscribe(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Plan) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "A plan name is required",
		})
	}

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := svc.Subscribe(ctx, shop, req.Plan)
	if !res.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	invalidateSubscriptionCache(shop)
	return c.JSON(res)
}

// HandleCancelSubscription cancels the external subscription (when one
// exists) and drops the shop back onto the free tier.
func HandleCancelSubscription(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := svc.Cancel(ctx, shop)
	if !res.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	invalidateSubscriptionCache(shop)
	return c.JSON(res)
}

// HandleBillingSync reconciles the local record against the platform's
// active subscriptions on demand.
func HandleBillingSync(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := svc.Sync(ctx, shop)
	if !res.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	invalidateSubscriptionCache(shop)
	return c.JSON(res)
}

// HandleBillingConfirm is the return URL the merchant lands on after
// approving (or declining) the charge. It syncs and sends the merchant
// back into the admin.
func HandleBillingConfirm(c *fiber.Ctx) error {
	shop := strings.ToLower(strings.TrimSpace(c.Query("shop")))
	if shop == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Missing shop parameter",
		})
	}

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := svc.Sync(ctx, shop)
	if !res.OK {
		fiberlog.Errorf("billing: post-approval sync failed for %s: %s", shop, res.Err)
	}
	invalidateSubscriptionCache(shop)

	return c.Redirect(env.AppBaseURL()+"/?shop="+shop, fiber.StatusSeeOther)
}

// HandleSubscriptionWebhook receives the platform's push notification on
// subscription charge approval. Deliveries are persisted idempotently
// before processing; replays return early with 200.
func HandleSubscriptionWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	topic := strings.TrimSpace(c.Get("X-Shopify-Topic"))
	if topic == "" {
		topic = "app_subscriptions/update"
	}
	eventID := strings.TrimSpace(c.Get("X-Shopify-Webhook-Id"))
	shop := strings.ToLower(strings.TrimSpace(c.Get("X-Shopify-Shop-Domain")))
	signature := strings.TrimSpace(c.Get("X-Shopify-Hmac-Sha256"))
	secret := env.GetEnv("WEBHOOK_SECRET", "")

	svc := billing.NewServiceForShop(database.GetDB(), shop)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, secret)
	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Topic:           topic,
		ExternalEventID: eventID,
		Shop:            shop,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		fiberlog.Errorf("webhook: persist failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		fiberlog.Warnf("webhook: invalid signature from %s (shop=%s)", GetClientIP(c), shop)
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if shop == "" {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("missing shop domain header"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_shop"})
	}

	event, err := billing.ParseSubscriptionChargeEvent(rawBody)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	res := svc.ActivateFromCharge(ctx, shop, event)
	if !res.OK {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New(res.Err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_update_failed"})
	}
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
	invalidateSubscriptionCache(shop)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleGetSubscription returns the shop's current subscription snapshot,
// served from cache when fresh.
func HandleGetSubscription(c *fiber.Ctx) error {
	shop := middleware.GetShop(c)

	raw, err := CachedSubscriptionJSON(shop)
	if err != nil {
		fiberlog.Errorf("billing: subscription load failed for %s: %v", shop, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Subscription could not be loaded",
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(raw)
}

// CachedSubscriptionJSON returns the shop's cached subscription snapshot,
// falling back to the database and refreshing the cache on a miss.
func CachedSubscriptionJSON(shop string) (string, error) {
	if cached, err := cache.Get(cache.SubscriptionKey(shop)); err == nil && cached != "" {
		return cached, nil
	}
	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetOrCreateByShop(shop)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}
	if err := cache.Set(cache.SubscriptionKey(shop), string(raw), subscriptionCacheTTL); err != nil {
		fiberlog.Warnf("cache: subscription snapshot write failed for %s: %v", shop, err)
	}
	return string(raw), nil
}

func invalidateSubscriptionCache(shop string) {
	if err := cache.Delete(cache.SubscriptionKey(shop)); err != nil {
		fiberlog.Warnf("cache: subscription invalidation failed for %s: %v", shop, err)
	}
}
