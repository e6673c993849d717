package entitlements

import (
	"strings"

	"github.com/ManuelReschke/SubFox/app/models"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanPremiumMax Plan = "premium_max"
)

// PlanForSubscription derives the effective plan from the subscription state
// and the synced price catalog. A subscription only entitles a paid plan while
// its status still grants access (active, trialing or within the past_due
// grace window).
func PlanForSubscription(sub *models.Subscription, mapping *models.PriceMapping) Plan {
	if sub == nil || !isEntitling(sub.Status) {
		return PlanFree
	}
	if mapping == nil || !mapping.IsActive {
		// Paid status but unknown price: grant the base paid plan until the
		// next catalog sync fills the mapping in.
		return PlanPremium
	}
	if nick := strings.ToLower(mapping.Nickname); strings.Contains(nick, "max") {
		return PlanPremiumMax
	}
	return PlanPremium
}

// Features returns the feature switches for a plan.
func Features(plan Plan) (apiAccess, prioritySupport bool) {
	switch plan {
	case PlanPremiumMax:
		return true, true
	case PlanPremium:
		return true, false
	default:
		return false, false
	}
}

func isEntitling(status string) bool {
	switch status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	}
	return false
}
