package repository

import (
	"errors"

	"github.com/PricePilot/PricePilot/app/models"
)

// ErrQuotaExceeded is returned by CommitModifiedProducts when the union of
// already-modified and newly-committed products would exceed the plan limit.
// The transaction rolls back and no product IDs are recorded.
var ErrQuotaExceeded = errors.New("unique-product quota exceeded")

// SubscriptionRepository defines the database operations on a shop's
// subscription record and its modified-product set. All quota mutations go
// through CommitModifiedProducts so the usage_count == |set| invariant is
// enforced at a single choke point.
type SubscriptionRepository interface {
	GetOrCreateByShop(shop string) (*models.Subscription, error)
	Update(sub *models.Subscription) error
	ResetToFree(shop string) (*models.Subscription, error)
	ModifiedProductIDs(shop string) ([]string, error)
	// CommitModifiedProducts atomically adds product IDs to the shop's
	// modified set, failing with ErrQuotaExceeded if the resulting set
	// would be larger than limit. Re-adding known IDs is a no-op. Returns
	// the usage count after the commit.
	CommitModifiedProducts(shop string, productIDs []string, limit int) (int, error)
}

// PricingHistoryRepository defines operations on the append-only price
// change log.
type PricingHistoryRepository interface {
	CreateBatch(entries []models.PricingHistory) error
	ListByShop(shop string, offset, limit int) ([]models.PricingHistory, error)
	CountByShop(shop string) (int64, error)
}

// WebhookEventRepository defines idempotent webhook event persistence.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}
