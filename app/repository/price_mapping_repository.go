package repository

import (
	"github.com/ManuelReschke/SubFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// priceMappingRepository implements the PriceMappingRepository interface
type priceMappingRepository struct {
	db *gorm.DB
}

// NewPriceMappingRepository creates a new price mapping repository instance
func NewPriceMappingRepository(db *gorm.DB) PriceMappingRepository {
	return &priceMappingRepository{db: db}
}

// Upsert inserts or refreshes a cached price catalog row
func (r *priceMappingRepository) Upsert(mapping *models.PriceMapping) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "price_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id",
			"nickname",
			"billing_interval",
			"unit_amount",
			"currency",
			"is_active",
			"updated_at",
		}),
	}).Create(mapping).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("price_id = ?", mapping.PriceID).First(mapping).Error
}

// GetByPriceID retrieves a cached price catalog row
func (r *priceMappingRepository) GetByPriceID(priceID string) (*models.PriceMapping, error) {
	var m models.PriceMapping
	err := r.db.Where("price_id = ? AND is_active = ?", priceID, true).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeactivateMissing marks catalog rows inactive when their price id is no
// longer reported by the provider.
func (r *priceMappingRepository) DeactivateMissing(activePriceIDs []string) error {
	if len(activePriceIDs) == 0 {
		return r.db.Model(&models.PriceMapping{}).Where("is_active = ?", true).
			Update("is_active", false).Error
	}
	return r.db.Model(&models.PriceMapping{}).
		Where("is_active = ? AND price_id NOT IN ?", true, activePriceIDs).
		Update("is_active", false).Error
}
