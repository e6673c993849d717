package repository

import (
	"time"

	"github.com/ManuelReschke/SubFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the audit record unless one already exists for
// the same event_id. Returns created=false with the stored record when a
// redelivered event hits the unique index.
func (r *webhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByEventID retrieves an audit record by its provider event id
func (r *webhookEventRepository) GetByEventID(eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Finalize writes the terminal status, duration and error detail in one
// update. The status guard ensures a record leaves processing exactly once.
func (r *webhookEventRepository) Finalize(id uint, status string, processingTimeMs int64, errMessage, errStack string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusProcessing).
		Updates(map[string]interface{}{
			"status":             status,
			"processing_time_ms": processingTimeMs,
			"error_message":      errMessage,
			"error_stack":        errStack,
			"processed_at":       &now,
		}).Error
}

// UpdateTraceFields stores the identifiers a handler resolved while
// processing, for traceability of the audit trail.
func (r *webhookEventRepository) UpdateTraceFields(id uint, userID uint, customerID, subscriptionID string) error {
	updates := map[string]interface{}{}
	if userID != 0 {
		updates["user_id"] = userID
	}
	if customerID != "" {
		updates["customer_id"] = customerID
	}
	if subscriptionID != "" {
		updates["subscription_id"] = subscriptionID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
