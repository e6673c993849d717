package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SubFox/app/models"
	"github.com/ManuelReschke/SubFox/app/repository"
)

const maxUpdateAttempts = 2

// updateByCustomer loads the subscription for a provider customer, applies
// mutate and writes it back under the optimistic version check. Events
// older than the last applied provider timestamp are dropped so out-of-order
// delivery converges on the latest-known state, not the latest arrival.
// Returns applied=false without error for the expected soft-skip branches
// (no matching subscription, stale event).
func (s *Service) updateByCustomer(customerID string, eventTime time.Time, mutate func(*models.Subscription)) (*models.Subscription, bool, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		sub, err := s.repo.GetSubscriptionByCustomerID(customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("[Webhook] no subscription for customer %s, skipping", customerID)
				return nil, false, nil
			}
			return nil, false, err
		}

		if !eventTime.IsZero() && sub.LastEventAt != nil && eventTime.Before(*sub.LastEventAt) {
			log.Infof("[Webhook] stale event for customer %s (event=%s < applied=%s), skipping",
				customerID, eventTime.Format(time.RFC3339), sub.LastEventAt.Format(time.RFC3339))
			return sub, false, nil
		}

		mutate(sub)
		if !eventTime.IsZero() {
			t := eventTime
			sub.LastEventAt = &t
		}

		err = s.repo.UpdateSubscription(sub)
		if err == nil {
			return sub, true, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			// Concurrent delivery for the same customer won the race;
			// re-read and re-apply once.
			continue
		}
		return nil, false, err
	}
	return nil, false, repository.ErrVersionConflict
}

// handleCheckoutCompleted links the provider customer created during
// checkout to the local user from the session metadata. It never changes
// the subscription status; the follow-up subscription events do that.
func (s *Service) handleCheckoutCompleted(ctx context.Context, ev *Event, record *models.WebhookEvent) error {
	_ = ctx
	session, err := DecodeCheckoutSession(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rawUserID := session.Metadata["user_id"]
	if rawUserID == "" {
		return fmt.Errorf("%w: checkout session %s has no user_id", ErrMissingMetadata, session.ID)
	}
	userID64, err := strconv.ParseUint(rawUserID, 10, 32)
	if err != nil || userID64 == 0 {
		return fmt.Errorf("%w: checkout session %s has malformed user_id %q", ErrMissingMetadata, session.ID, rawUserID)
	}
	userID := uint(userID64)

	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// Checkout is one of the two entry points allowed to create a
		// subscription row.
		sub = &models.Subscription{
			UserID:     userID,
			CustomerID: session.Customer,
			Status:     models.SubscriptionStatusFree,
		}
		if err := s.repo.CreateSubscription(sub); err != nil {
			return err
		}
	} else if sub.CustomerID == "" && session.Customer != "" {
		sub.CustomerID = session.Customer
		if err := s.repo.UpdateSubscription(sub); err != nil {
			return err
		}
	}

	s.ledger.Trace(record, userID, session.Customer, session.Subscription)
	return nil
}

// handleSubscriptionChange applies customer.subscription.created/updated as
// an idempotent upsert of latest-known-state fields.
func (s *Service) handleSubscriptionChange(ctx context.Context, ev *Event, record *models.WebhookEvent) error {
	_ = ctx
	ps, err := DecodeProviderSubscription(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	sub, applied, err := s.updateByCustomer(ps.Customer, ev.Created, func(sub *models.Subscription) {
		sub.SubscriptionID = ps.ID
		sub.PriceID = ps.PriceID
		sub.ProductID = ps.ProductID
		sub.Status = MapProviderStatus(ps.Status)
		sub.CurrentPeriodStart = ps.CurrentPeriodStart
		sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
		sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
		sub.CanceledAt = ps.CanceledAt
		sub.TrialEnd = ps.TrialEnd
	})
	if err != nil {
		return err
	}
	if applied {
		s.ledger.Trace(record, sub.UserID, ps.Customer, ps.ID)
	}
	return nil
}

// handleSubscriptionDeleted cancels the local subscription and clears the
// provider references, then queues the cancellation notice.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev *Event, record *models.WebhookEvent) error {
	_ = ctx
	ps, err := DecodeProviderSubscription(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	now := time.Now()
	sub, applied, err := s.updateByCustomer(ps.Customer, ev.Created, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionStatusCanceled
		sub.SubscriptionID = ""
		sub.PriceID = ""
		sub.ProductID = ""
		sub.CanceledAt = &now
	})
	if err != nil {
		return err
	}
	if applied {
		s.ledger.Trace(record, sub.UserID, ps.Customer, ps.ID)
		s.notifyCancellation(sub.UserID)
	}
	return nil
}

// handleInvoicePaymentSucceeded records the payment facts of a settled
// invoice. The provider timestamp guard is intentionally not applied here:
// invoices interleave with subscription events and never carry state that a
// later subscription event would overwrite.
func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, ev *Event, record *models.WebhookEvent) error {
	_ = ctx
	inv, err := DecodeInvoice(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	now := time.Now()
	sub, applied, err := s.updateByCustomer(inv.Customer, time.Time{}, func(sub *models.Subscription) {
		sub.LastPaymentAmount = inv.AmountPaid
		sub.LastPaymentDate = &now
		sub.NextPaymentDate = s.nextPaymentDate(inv, sub, now)
	})
	if err != nil {
		return err
	}
	if applied {
		s.ledger.Trace(record, sub.UserID, inv.Customer, inv.Subscription)
	}
	return nil
}

// handleInvoicePaymentFailed moves the subscription to past_due and queues
// the payment failure notice.
func (s *Service) handleInvoicePaymentFailed(ctx context.Context, ev *Event, record *models.WebhookEvent) error {
	_ = ctx
	inv, err := DecodeInvoice(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	sub, applied, err := s.updateByCustomer(inv.Customer, time.Time{}, func(sub *models.Subscription) {
		sub.Status = models.SubscriptionStatusPastDue
	})
	if err != nil {
		return err
	}
	if applied {
		s.ledger.Trace(record, sub.UserID, inv.Customer, inv.Subscription)
		s.notifyPaymentFailure(sub.UserID)
	}
	return nil
}

// nextPaymentDate prefers the provider-announced next attempt, then the
// invoice period end, then falls back to the cached price catalog interval.
func (s *Service) nextPaymentDate(inv *Invoice, sub *models.Subscription, paidAt time.Time) *time.Time {
	if inv.NextPaymentAttempt != nil {
		return inv.NextPaymentAttempt
	}
	if inv.PeriodEnd != nil {
		return inv.PeriodEnd
	}

	priceID := inv.PriceID
	if priceID == "" {
		priceID = sub.PriceID
	}
	if priceID == "" {
		return nil
	}
	mapping, err := s.repo.GetPriceMapping(priceID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Webhook] price mapping lookup failed for %s: %v", priceID, err)
		}
		return nil
	}

	var next time.Time
	switch mapping.BillingInterval {
	case models.BillingIntervalMonth:
		next = paidAt.AddDate(0, 1, 0)
	case models.BillingIntervalYear:
		next = paidAt.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &next
}
