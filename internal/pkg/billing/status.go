package billing

import (
	"strings"

	"github.com/ManuelReschke/SubFox/app/models"
)

// MapProviderStatus maps a provider subscription status string to the local
// status enum. Unknown values fall back to free instead of erroring so a
// provider-side addition never breaks ingestion.
func MapProviderStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "active":
		return models.SubscriptionStatusActive
	case "canceled":
		return models.SubscriptionStatusCanceled
	case "incomplete":
		return models.SubscriptionStatusIncomplete
	case "incomplete_expired":
		return models.SubscriptionStatusIncompleteExpired
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "unpaid":
		return models.SubscriptionStatusUnpaid
	case "paused":
		return models.SubscriptionStatusPaused
	default:
		return models.SubscriptionStatusFree
	}
}

// IsEntitlingStatus reports whether a local status still grants access to
// paid features.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
