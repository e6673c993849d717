package models

import "time"

// Local subscription statuses. Provider statuses are mapped onto these by
// the billing package; unknown provider values fall back to free.
const (
	SubscriptionStatusFree              = "free"
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusPaused            = "paused"
)

// Subscription mirrors the provider-reported billing state for one user.
// There is at most one row per user and at most one per provider customer.
// Rows are created at account provisioning (status free) and afterwards
// mutated only by webhook handlers, never by user-facing code.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	CustomerID         string     `gorm:"type:varchar(191);default:null;uniqueIndex:ux_subscriptions_customer" json:"customer_id"`
	SubscriptionID     string     `gorm:"type:varchar(191);default:null;index" json:"subscription_id"`
	PriceID            string     `gorm:"type:varchar(191);default:null" json:"price_id"`
	ProductID          string     `gorm:"type:varchar(191);default:null" json:"product_id"`
	Status             string     `gorm:"type:varchar(32);not null;default:'free';index" json:"status"`
	CurrentPeriodStart *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt         *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	TrialEnd           *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	LastPaymentAmount  int64      `gorm:"default:0" json:"last_payment_amount"`
	LastPaymentDate    *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_date,omitempty"`
	NextPaymentDate    *time.Time `gorm:"type:timestamp;default:null" json:"next_payment_date,omitempty"`
	LastEventAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	Version            uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasBillingIdentity reports whether the subscription is linked to a
// provider customer yet.
func (s *Subscription) HasBillingIdentity() bool {
	return s.CustomerID != ""
}
