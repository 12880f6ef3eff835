package repository

import (
	"errors"
	"sort"
	"time"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/internal/pkg/plans"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const billingPeriod = 30 * 24 * time.Hour

// subscriptionRepository implements SubscriptionRepository using GORM
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetOrCreateByShop loads the shop's subscription record, lazily creating a
// free-tier row on first access. When the current billing period has
// elapsed it also clears the modified-product set and rolls the period end
// forward before returning.
func (r *subscriptionRepository) GetOrCreateByShop(shop string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("shop = ?", shop).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		free := plans.Free()
		periodEnd := time.Now().Add(billingPeriod)
		fresh := models.Subscription{
			Shop:             shop,
			PlanName:         free.Name,
			Status:           models.SubscriptionStatusActive,
			UsageLimit:       free.UsageLimit,
			CurrentPeriodEnd: &periodEnd,
		}
		// DoNothing keeps concurrent first requests from racing the insert.
		if err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop"}},
			DoNothing: true,
		}).Create(&fresh).Error; err != nil {
			return nil, err
		}
		if err := r.db.Where("shop = ?", shop).First(&sub).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := r.rolloverIfElapsed(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// rolloverIfElapsed resets period usage once current_period_end has passed.
// The lifetime counter survives the reset.
func (r *subscriptionRepository) rolloverIfElapsed(sub *models.Subscription) error {
	now := time.Now()
	if sub.CurrentPeriodEnd == nil || now.Before(*sub.CurrentPeriodEnd) {
		return nil
	}
	next := nextPeriodEnd(*sub.CurrentPeriodEnd, now)
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shop = ?", sub.Shop).Delete(&models.ModifiedProduct{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]interface{}{
			"usage_count":        0,
			"current_period_end": &next,
		}).Error; err != nil {
			return err
		}
		sub.UsageCount = 0
		sub.CurrentPeriodEnd = &next
		return nil
	})
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// ResetToFree puts the record back on the free tier. The modified-product
// set and lifetime counters are left untouched; downgrading does not refund
// quota already consumed this period.
func (r *subscriptionRepository) ResetToFree(shop string) (*models.Subscription, error) {
	sub, err := r.GetOrCreateByShop(shop)
	if err != nil {
		return nil, err
	}
	free := plans.Free()
	sub.PlanName = free.Name
	sub.Status = models.SubscriptionStatusActive
	sub.UsageLimit = free.UsageLimit
	sub.SubscriptionID = nil
	if err := r.db.Save(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepository) ModifiedProductIDs(shop string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.ModifiedProduct{}).
		Where("shop = ?", shop).
		Order("id ASC").
		Pluck("product_id", &ids).Error
	return ids, err
}

// CommitModifiedProducts performs the conditional union "add these IDs only
// if the resulting set fits the limit" as one transaction: the subscription
// row is locked, IDs are insert-ignored, the set is recounted, and the
// whole thing rolls back with ErrQuotaExceeded when the count exceeds the
// limit. This closes the check-then-commit race between concurrent bulk
// edits from the same shop.
func (r *subscriptionRepository) CommitModifiedProducts(shop string, productIDs []string, limit int) (int, error) {
	ids := dedupSorted(productIDs)
	var total int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("shop = ?", shop).First(&sub).Error; err != nil {
			return err
		}

		var inserted int64
		if len(ids) > 0 {
			rows := make([]models.ModifiedProduct, 0, len(ids))
			for _, id := range ids {
				rows = append(rows, models.ModifiedProduct{Shop: shop, ProductID: id})
			}
			res := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "shop"},
					{Name: "product_id"},
				},
				DoNothing: true,
			}).Create(&rows)
			if res.Error != nil {
				return res.Error
			}
			inserted = res.RowsAffected
		}

		if err := tx.Model(&models.ModifiedProduct{}).Where("shop = ?", shop).Count(&total).Error; err != nil {
			return err
		}
		if limit > 0 && total > int64(limit) {
			return ErrQuotaExceeded
		}

		return tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]interface{}{
			"usage_count":             total,
			"lifetime_modified_count": gorm.Expr("lifetime_modified_count + ?", inserted),
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// nextPeriodEnd steps an elapsed period end forward in whole billing
// periods until it lies after now. Stepping from the stored end, instead
// of anchoring on now, keeps the billing anchor stable across however many
// idle periods a shop skipped.
func nextPeriodEnd(current, now time.Time) time.Time {
	next := current
	for !next.After(now) {
		next = next.Add(billingPeriod)
	}
	return next
}

// dedupSorted collapses duplicate IDs and sorts them so concurrent commits
// always lock modified_products rows in the same order.
func dedupSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
