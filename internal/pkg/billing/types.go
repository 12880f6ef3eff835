package billing

import (
	"context"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
)

// CommerceClient is the slice of the platform API the reconciler needs.
// *shopify.Client satisfies it; tests use fakes.
type CommerceClient interface {
	CreateSubscription(ctx context.Context, params shopify.SubscriptionParams) (*shopify.PendingSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ActiveSubscriptions(ctx context.Context) ([]shopify.ActiveSubscription, error)
}

// Repository is the slice of persistence the reconciler needs.
type Repository interface {
	GetOrCreateByShop(shop string) (*models.Subscription, error)
	Update(sub *models.Subscription) error
	ResetToFree(shop string) (*models.Subscription, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

// Result is the outcome of a billing operation. External-call failures are
// converted into OK=false with a reason instead of a returned error, so
// callers always get a checkable result.
type Result struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

func failure(reason string) Result {
	return Result{OK: false, Err: reason}
}

func success() Result {
	return Result{OK: true}
}

// SubscribeResult is the outcome of a plan change request. For paid plans
// ConfirmationURL must be visited by the merchant before the subscription
// activates.
type SubscribeResult struct {
	Result
	PlanName        string `json:"plan_name,omitempty"`
	Status          string `json:"status,omitempty"`
	SubscriptionID  string `json:"subscription_id,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	TrialDays       int    `json:"trial_days,omitempty"`
}

// SyncResult is the outcome of reconciling local state against the
// platform's active subscriptions.
type SyncResult struct {
	Result
	PlanName   string `json:"plan_name,omitempty"`
	Status     string `json:"status,omitempty"`
	UsageLimit int    `json:"usage_limit,omitempty"`
}

// TrialEligibility reports whether a shop qualifies for a plan's trial and,
// when it does not, why.
type TrialEligibility struct {
	Eligible bool   `json:"eligible"`
	Days     int    `json:"days,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Topic           string
	ExternalEventID string
	Shop            string
	PayloadJSON     string
	SignatureValid  bool
}
