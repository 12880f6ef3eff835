package models

import "time"

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription holds the billing state of one shop: which plan it is on,
// how much of the unique-product quota it has consumed this period, and the
// link to the external platform subscription. One row per shop, created
// lazily on first access and never hard-deleted; cancellation resets the
// row back to the free tier.
type Subscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Shop                  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"shop"`
	PlanName              string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_name"`
	Status                string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	UsageCount            int        `gorm:"not null;default:0" json:"usage_count"`
	UsageLimit            int        `gorm:"not null;default:0" json:"usage_limit"`
	LifetimeModifiedCount int        `gorm:"not null;default:0" json:"lifetime_modified_count"`
	HadPaidPlan           bool       `gorm:"not null;default:false" json:"had_paid_plan"`
	SubscriptionID        *string    `gorm:"type:varchar(191);default:null;index" json:"subscription_id,omitempty"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ModifiedProduct records one product that consumed quota for a shop in the
// current billing period. The set of rows per shop is the authoritative
// uniqueProductsModified set; Subscription.UsageCount mirrors its size and
// the two are only written together inside the commit transaction.
type ModifiedProduct struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Shop      string    `gorm:"type:varchar(191);not null;index:ux_modified_products_shop_product,unique,priority:1" json:"shop"`
	ProductID string    `gorm:"type:varchar(191);not null;index:ux_modified_products_shop_product,unique,priority:2" json:"product_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
