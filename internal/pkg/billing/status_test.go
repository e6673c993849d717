package billing

import (
	"testing"

	"github.com/ManuelReschke/SubFox/app/models"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]string{
		"active":             models.SubscriptionStatusActive,
		"canceled":           models.SubscriptionStatusCanceled,
		"incomplete":         models.SubscriptionStatusIncomplete,
		"incomplete_expired": models.SubscriptionStatusIncompleteExpired,
		"past_due":           models.SubscriptionStatusPastDue,
		"trialing":           models.SubscriptionStatusTrialing,
		"unpaid":             models.SubscriptionStatusUnpaid,
		"paused":             models.SubscriptionStatusPaused,
	}
	for provider, want := range cases {
		if got := MapProviderStatus(provider); got != want {
			t.Fatalf("MapProviderStatus(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestMapProviderStatusNormalizesInput(t *testing.T) {
	if got := MapProviderStatus("  Active "); got != models.SubscriptionStatusActive {
		t.Fatalf("expected normalized input to map to active, got %q", got)
	}
}

func TestMapProviderStatusUnknownFallsBackToFree(t *testing.T) {
	for _, provider := range []string{"", "some_future_status", "deleted"} {
		if got := MapProviderStatus(provider); got != models.SubscriptionStatusFree {
			t.Fatalf("MapProviderStatus(%q) = %q, want free", provider, got)
		}
	}
}

func TestIsEntitlingStatus(t *testing.T) {
	entitling := []string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusPastDue,
	}
	for _, status := range entitling {
		if !IsEntitlingStatus(status) {
			t.Fatalf("expected %q to entitle", status)
		}
	}

	notEntitling := []string{
		models.SubscriptionStatusFree,
		models.SubscriptionStatusCanceled,
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusIncompleteExpired,
		models.SubscriptionStatusUnpaid,
		models.SubscriptionStatusPaused,
	}
	for _, status := range notEntitling {
		if IsEntitlingStatus(status) {
			t.Fatalf("expected %q to not entitle", status)
		}
	}
}
