package billing

import (
	"github.com/ManuelReschke/SubFox/app/models"
	"github.com/ManuelReschke/SubFox/app/repository"
	"gorm.io/gorm"
)

// Repository is the persistence surface the webhook pipeline needs. The
// production implementation delegates to the app repositories; tests swap
// in an in-memory fake.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetSubscriptionByUserID(userID uint) (*models.Subscription, error)
	GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscription(sub *models.Subscription) error
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	FinalizeWebhookEvent(id uint, status string, processingTimeMs int64, errMessage, errStack string) error
	UpdateWebhookTrace(id uint, userID uint, customerID, subscriptionID string) error
	GetPriceMapping(priceID string) (*models.PriceMapping, error)
}

type gormRepository struct {
	repos *repository.Repositories
}

// NewRepository creates the billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{repos: repository.NewRepositories(db)}
}

// NewRepositoryFromRepos wraps already constructed app repositories.
func NewRepositoryFromRepos(repos *repository.Repositories) Repository {
	return &gormRepository{repos: repos}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	return r.repos.User.GetByID(id)
}

func (r *gormRepository) GetSubscriptionByUserID(userID uint) (*models.Subscription, error) {
	return r.repos.Subscription.GetByUserID(userID)
}

func (r *gormRepository) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	return r.repos.Subscription.GetByCustomerID(customerID)
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.repos.Subscription.Create(sub)
}

func (r *gormRepository) UpdateSubscription(sub *models.Subscription) error {
	return r.repos.Subscription.UpdateGuarded(sub)
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	return r.repos.WebhookEvent.CreateIfNotExists(event)
}

func (r *gormRepository) FinalizeWebhookEvent(id uint, status string, processingTimeMs int64, errMessage, errStack string) error {
	return r.repos.WebhookEvent.Finalize(id, status, processingTimeMs, errMessage, errStack)
}

func (r *gormRepository) UpdateWebhookTrace(id uint, userID uint, customerID, subscriptionID string) error {
	return r.repos.WebhookEvent.UpdateTraceFields(id, userID, customerID, subscriptionID)
}

func (r *gormRepository) GetPriceMapping(priceID string) (*models.PriceMapping, error) {
	return r.repos.PriceMapping.GetByPriceID(priceID)
}
