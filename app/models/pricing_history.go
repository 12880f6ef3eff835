package models

import "time"

// PricingHistory is an append-only record of one successful variant price
// change. Rows are written after the external mutation confirmed success and
// are never updated or deleted by the application.
type PricingHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Shop           string    `gorm:"type:varchar(191);not null;index:idx_pricing_history_shop_created,priority:1" json:"shop"`
	BatchID        string    `gorm:"type:varchar(36);not null;index" json:"batch_id"`
	ProductID      string    `gorm:"type:varchar(191);not null;index" json:"product_id"`
	ProductTitle   string    `gorm:"type:varchar(255);not null" json:"product_title"`
	VariantID      string    `gorm:"type:varchar(191);not null" json:"variant_id"`
	VariantTitle   string    `gorm:"type:varchar(255);not null" json:"variant_title"`
	AdjustmentType string    `gorm:"type:varchar(20);not null" json:"adjustment_type"`
	AdjustmentVal  float64   `gorm:"not null" json:"adjustment_value"`
	OldPrice       float64   `gorm:"not null" json:"old_price"`
	NewPrice       float64   `gorm:"not null" json:"new_price"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_pricing_history_shop_created,priority:2" json:"created_at"`
}
