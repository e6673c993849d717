package repository

import (
	"errors"

	"github.com/ManuelReschke/SubFox/app/models"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when an optimistic version check fails
// because another request updated the same subscription row concurrently.
var ErrVersionConflict = errors.New("subscription version conflict")

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription row
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByUserID retrieves the subscription owned by a user
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByCustomerID retrieves the subscription linked to a provider customer
func (r *subscriptionRepository) GetByCustomerID(customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateGuarded writes the subscription with an optimistic version check.
// The WHERE clause matches the version the caller read; zero rows affected
// means a concurrent writer won and the caller must re-read and retry.
func (r *subscriptionRepository) UpdateGuarded(sub *models.Subscription) error {
	readVersion := sub.Version
	sub.Version = readVersion + 1

	tx := r.db.Model(&models.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(sub)
	if tx.Error != nil {
		sub.Version = readVersion
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		sub.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

// Count returns the total number of subscription rows
func (r *subscriptionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}
