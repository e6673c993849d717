package models

import "time"

// Webhook event processing statuses. A record is created as processing and
// transitions exactly once to a terminal status.
const (
	WebhookStatusProcessing = "processing"
	WebhookStatusSuccess    = "success"
	WebhookStatusFailed     = "failed"
	WebhookStatusIgnored    = "ignored"
)

// WebhookEvent stores one audit record per inbound provider event. The
// unique event_id index is the idempotency boundary for redelivered events.
type WebhookEvent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	EventID          string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType        string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Status           string     `gorm:"type:varchar(16);not null;default:'processing';index" json:"status"`
	RequestBody      string     `gorm:"type:longtext;not null" json:"request_body"`
	Signature        string     `gorm:"type:varchar(512)" json:"signature"`
	APIVersion       string     `gorm:"type:varchar(32)" json:"api_version"`
	UserID           uint       `gorm:"default:0;index" json:"user_id"`
	CustomerID       string     `gorm:"type:varchar(191);default:null;index" json:"customer_id"`
	SubscriptionID   string     `gorm:"type:varchar(191);default:null" json:"subscription_id"`
	ProcessingTimeMs int64      `gorm:"default:0" json:"processing_time_ms"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	ErrorStack       string     `gorm:"type:text" json:"error_stack"`
	ProcessedAt      *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the record already left the processing state.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status != WebhookStatusProcessing
}
