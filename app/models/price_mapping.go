package models

import "time"

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

// PriceMapping caches provider price metadata (product, interval, amount)
// so handlers can compute payment expectations without calling the provider
// inline. Rows are refreshed by the catalog sync job.
type PriceMapping struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PriceID         string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_price_mappings_price" json:"price_id"`
	ProductID       string    `gorm:"type:varchar(191);not null;index" json:"product_id"`
	Nickname        string    `gorm:"type:varchar(150)" json:"nickname"`
	BillingInterval string    `gorm:"type:varchar(16);not null;default:'unknown'" json:"billing_interval"`
	UnitAmount      int64     `gorm:"default:0" json:"unit_amount"`
	Currency        string    `gorm:"type:varchar(8);default:'eur'" json:"currency"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
