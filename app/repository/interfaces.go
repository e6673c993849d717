package repository

import (
	"github.com/ManuelReschke/SubFox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for subscription-related
// database operations. Updates go through UpdateGuarded which enforces the
// optimistic version check so concurrent webhook deliveries for the same
// customer cannot overwrite each other silently.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByUserID(userID uint) (*models.Subscription, error)
	GetByCustomerID(customerID string) (*models.Subscription, error)
	UpdateGuarded(sub *models.Subscription) error
	Count() (int64, error)
}

// WebhookEventRepository defines the interface for webhook audit records.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	GetByEventID(eventID string) (*models.WebhookEvent, error)
	Finalize(id uint, status string, processingTimeMs int64, errMessage, errStack string) error
	UpdateTraceFields(id uint, userID uint, customerID, subscriptionID string) error
}

// PriceMappingRepository defines the interface for the cached price catalog.
type PriceMappingRepository interface {
	Upsert(mapping *models.PriceMapping) error
	GetByPriceID(priceID string) (*models.PriceMapping, error)
	DeactivateMissing(activePriceIDs []string) error
}
