package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/constants"
	"github.com/PricePilot/PricePilot/internal/pkg/env"
	"github.com/PricePilot/PricePilot/internal/pkg/plans"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Service keeps the local subscription record consistent with the external
// billing provider's view. All operations trap errors and hand back
// structured results; callers check the OK flag.
type Service struct {
	repo   Repository
	client CommerceClient
}

// NewService creates a billing service from an injected repository and
// platform client.
func NewService(repo Repository, client CommerceClient) *Service {
	return &Service{repo: repo, client: client}
}

// NewServiceForShop builds a service wired to the shop's platform endpoint
// using the process-wide repositories.
func NewServiceForShop(db *gorm.DB, shop string) *Service {
	return NewService(newGormRepository(db), shopify.NewClientFromEnv(shop))
}

// gormRepository adapts the app repositories to the narrow billing interface.
type gormRepository struct {
	subs   repository.SubscriptionRepository
	events repository.WebhookEventRepository
}

func newGormRepository(db *gorm.DB) *gormRepository {
	return &gormRepository{
		subs:   repository.NewSubscriptionRepository(db),
		events: repository.NewWebhookEventRepository(db),
	}
}

func (r *gormRepository) GetOrCreateByShop(shop string) (*models.Subscription, error) {
	return r.subs.GetOrCreateByShop(shop)
}

func (r *gormRepository) Update(sub *models.Subscription) error {
	return r.subs.Update(sub)
}

func (r *gormRepository) ResetToFree(shop string) (*models.Subscription, error) {
	return r.subs.ResetToFree(shop)
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	return r.events.CreateIfNotExists(event)
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	return r.events.MarkProcessed(id, processingError)
}

// Subscribe starts a plan change. A free downgrade goes through the same
// path as a cancellation so a stored external subscription is cancelled
// before the local reset. Paid plans create a pending external
// subscription; the merchant approves it via the returned confirmation
// URL, and activation lands later through the webhook or a sync.
func (s *Service) Subscribe(ctx context.Context, shop, planName string) SubscribeResult {
	plan, ok := plans.ByName(planName)
	if !ok {
		return SubscribeResult{Result: failure(fmt.Sprintf("unknown plan %q", planName))}
	}

	if plan.IsFree() {
		if res := s.Cancel(ctx, shop); !res.OK {
			return SubscribeResult{Result: res}
		}
		return SubscribeResult{
			Result:   success(),
			PlanName: plans.PlanFree,
			Status:   models.SubscriptionStatusActive,
		}
	}

	trialDays := 0
	if trial := s.TrialEligibility(ctx, shop, plan.Name); trial.Eligible {
		trialDays = trial.Days
	}

	pending, err := s.client.CreateSubscription(ctx, shopify.SubscriptionParams{
		Name:      plan.DisplayName,
		Price:     plan.Price,
		Currency:  plan.Currency,
		Interval:  plan.Interval,
		TrialDays: trialDays,
		ReturnURL: env.AppBaseURL() + constants.BillingConfirmRoute,
		Test:      env.IsBillingTest(),
	})
	if err != nil {
		fiberlog.Errorf("billing: subscription create failed for %s plan %s: %v", shop, plan.Name, err)
		return SubscribeResult{Result: failure("subscription could not be created")}
	}

	sub, err := s.repo.GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: record load failed for %s: %v", shop, err)
		return SubscribeResult{Result: failure("subscription record could not be loaded")}
	}
	subID := pending.ID
	sub.PlanName = plan.Name
	sub.Status = models.SubscriptionStatusPending
	sub.UsageLimit = plan.UsageLimit
	sub.SubscriptionID = &subID
	if err := s.repo.Update(sub); err != nil {
		fiberlog.Errorf("billing: record update failed for %s: %v", shop, err)
		return SubscribeResult{Result: failure("subscription record could not be saved")}
	}

	return SubscribeResult{
		Result:          success(),
		PlanName:        plan.Name,
		Status:          sub.Status,
		SubscriptionID:  pending.ID,
		ConfirmationURL: pending.ConfirmationURL,
		TrialDays:       trialDays,
	}
}

// Cancel cancels the external subscription when one is stored and always
// resets the local record to the free tier. The modified-product set is
// kept; cancelling does not refund quota consumed this period.
func (s *Service) Cancel(ctx context.Context, shop string) Result {
	sub, err := s.repo.GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: record load failed for %s: %v", shop, err)
		return failure("subscription record could not be loaded")
	}

	if sub.SubscriptionID != nil && *sub.SubscriptionID != "" {
		if err := s.client.CancelSubscription(ctx, *sub.SubscriptionID); err != nil {
			fiberlog.Errorf("billing: subscription cancel failed for %s (%s): %v", shop, *sub.SubscriptionID, err)
			return failure("subscription could not be cancelled")
		}
	}

	if _, err := s.repo.ResetToFree(shop); err != nil {
		fiberlog.Errorf("billing: reset to free failed for %s: %v", shop, err)
		return failure("subscription record could not be reset")
	}
	return success()
}

// Sync overwrites local subscription state with the platform's view. With
// no active external subscription the shop falls back to the free tier;
// otherwise the first active subscription wins and its price is mapped
// back onto the catalog.
func (s *Service) Sync(ctx context.Context, shop string) SyncResult {
	active, err := s.client.ActiveSubscriptions(ctx)
	if err != nil {
		fiberlog.Errorf("billing: active subscription fetch failed for %s: %v", shop, err)
		return SyncResult{Result: failure("active subscriptions could not be fetched")}
	}

	if len(active) == 0 {
		sub, err := s.repo.ResetToFree(shop)
		if err != nil {
			fiberlog.Errorf("billing: reset to free failed for %s: %v", shop, err)
			return SyncResult{Result: failure("subscription record could not be reset")}
		}
		return SyncResult{
			Result:     success(),
			PlanName:   sub.PlanName,
			Status:     sub.Status,
			UsageLimit: sub.UsageLimit,
		}
	}

	ext := active[0]
	sub, err := s.repo.GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: record load failed for %s: %v", shop, err)
		return SyncResult{Result: failure("subscription record could not be loaded")}
	}

	if plan, ok := plans.MatchByPrice(ext.Price); ok {
		sub.PlanName = plan.Name
		sub.UsageLimit = plan.UsageLimit
		if !plan.IsFree() {
			sub.HadPaidPlan = true
		}
	} else {
		// Price does not map to any catalog tier; keep the current plan
		// fields but still record status and identity below.
		fiberlog.Warnf("billing: no plan matches price %.2f for %s, keeping plan %s", ext.Price, shop, sub.PlanName)
	}
	sub.Status = normalizeExternalStatus(ext.Status)
	subID := ext.ID
	sub.SubscriptionID = &subID
	if ext.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = ext.CurrentPeriodEnd
	}
	if err := s.repo.Update(sub); err != nil {
		fiberlog.Errorf("billing: record update failed for %s: %v", shop, err)
		return SyncResult{Result: failure("subscription record could not be saved")}
	}

	return SyncResult{
		Result:     success(),
		PlanName:   sub.PlanName,
		Status:     sub.Status,
		UsageLimit: sub.UsageLimit,
	}
}

// ActivateFromCharge applies an approved subscription charge pushed by the
// webhook: price maps to a plan, the record goes active. Non-active charge
// statuses are ignored.
func (s *Service) ActivateFromCharge(ctx context.Context, shop string, event *SubscriptionChargeEvent) Result {
	_ = ctx
	if !strings.EqualFold(event.Status, "ACTIVE") {
		return success()
	}

	sub, err := s.repo.GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: record load failed for %s: %v", shop, err)
		return failure("subscription record could not be loaded")
	}

	if plan, ok := plans.MatchByPrice(event.PriceAmount); ok {
		sub.PlanName = plan.Name
		sub.UsageLimit = plan.UsageLimit
		if !plan.IsFree() {
			sub.HadPaidPlan = true
		}
	} else {
		fiberlog.Warnf("billing: webhook price %.2f matches no plan for %s, keeping plan %s", event.PriceAmount, shop, sub.PlanName)
	}
	sub.Status = models.SubscriptionStatusActive
	subID := event.SubscriptionID
	sub.SubscriptionID = &subID
	if err := s.repo.Update(sub); err != nil {
		fiberlog.Errorf("billing: record update failed for %s: %v", shop, err)
		return failure("subscription record could not be saved")
	}
	return success()
}

// TrialEligibility decides whether the shop qualifies for the plan's trial:
// the plan must define trial days, the shop must never have held a paid
// plan or external subscription, and lifetime usage must be low.
func (s *Service) TrialEligibility(ctx context.Context, shop, planName string) TrialEligibility {
	_ = ctx
	plan, ok := plans.ByName(planName)
	if !ok {
		return TrialEligibility{Eligible: false, Reason: "unknown plan"}
	}
	if plan.TrialDays <= 0 {
		return TrialEligibility{Eligible: false, Reason: "plan has no trial"}
	}

	sub, err := s.repo.GetOrCreateByShop(shop)
	if err != nil {
		fiberlog.Errorf("billing: record load failed for %s: %v", shop, err)
		return TrialEligibility{Eligible: false, Reason: "subscription record unavailable"}
	}
	if sub.HadPaidPlan || (sub.SubscriptionID != nil && *sub.SubscriptionID != "") {
		return TrialEligibility{Eligible: false, Reason: "shop already had a paid subscription"}
	}
	if sub.LifetimeModifiedCount >= plans.LowUsageThreshold {
		return TrialEligibility{Eligible: false, Reason: "shop usage is above the trial threshold"}
	}
	return TrialEligibility{Eligible: true, Days: plan.TrialDays}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	topic := strings.ToLower(strings.TrimSpace(in.Topic))
	if topic == "" {
		return false, nil, errors.New("topic is required")
	}
	eventID := strings.TrimSpace(in.ExternalEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Topic:           topic,
		ExternalEventID: eventID,
		Shop:            strings.TrimSpace(in.Shop),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// normalizeExternalStatus maps the platform's subscription status onto the
// local lifecycle tags.
func normalizeExternalStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		return models.SubscriptionStatusActive
	case "PENDING":
		return models.SubscriptionStatusPending
	case "CANCELLED", "EXPIRED", "DECLINED", "FROZEN":
		return models.SubscriptionStatusCancelled
	default:
		return models.SubscriptionStatusPending
	}
}
