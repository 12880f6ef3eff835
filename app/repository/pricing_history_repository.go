package repository

import (
	"github.com/PricePilot/PricePilot/app/models"
	"gorm.io/gorm"
)

// pricingHistoryRepository implements PricingHistoryRepository using GORM
type pricingHistoryRepository struct {
	db *gorm.DB
}

// NewPricingHistoryRepository creates a new pricing history repository instance
func NewPricingHistoryRepository(db *gorm.DB) PricingHistoryRepository {
	return &pricingHistoryRepository{db: db}
}

func (r *pricingHistoryRepository) CreateBatch(entries []models.PricingHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.Create(&entries).Error
}

func (r *pricingHistoryRepository) ListByShop(shop string, offset, limit int) ([]models.PricingHistory, error) {
	var entries []models.PricingHistory
	err := r.db.Where("shop = ?", shop).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *pricingHistoryRepository) CountByShop(shop string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PricingHistory{}).Where("shop = ?", shop).Count(&count).Error
	return count, err
}
