package billing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SubFox/app/models"
)

// ErrInvalidPayload marks a body that passed signature verification but
// cannot be decoded as a provider event envelope.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// ErrMissingMetadata marks an event that lacks required metadata (e.g. no
// user id on a completed checkout). Surfaced as a server error so the
// provider redelivers, since it usually indicates an integration bug.
var ErrMissingMetadata = errors.New("missing required event metadata")

// NotificationEnqueuer decouples transactional notifications from the
// webhook critical path. Implemented by the jobqueue; enqueue failures are
// logged and never change the webhook outcome.
type NotificationEnqueuer interface {
	EnqueueCancellationNotice(email, username string) error
	EnqueuePaymentFailureNotice(email, username string) error
}

// Result is the outcome of one webhook delivery.
type Result struct {
	// Status is the terminal audit record status, empty when the request
	// was rejected before a record was created.
	Status string
	// Duplicate is set when the event id was already recorded and side
	// effects were skipped.
	Duplicate bool
	Err       error
}

// Service runs the webhook ingestion pipeline: signature verification,
// audit ledger, event routing and the subscription state machine.
type Service struct {
	repo      Repository
	ledger    *AuditLedger
	router    *EventRouter
	notifier  NotificationEnqueuer
	secret    string
	tolerance time.Duration
}

// NewService wires the pipeline. The webhook secret must already be
// validated at startup; tolerance zero disables the freshness window.
func NewService(repo Repository, notifier NotificationEnqueuer, secret string, tolerance time.Duration) *Service {
	s := &Service{
		repo:      repo,
		ledger:    NewAuditLedger(repo),
		router:    NewEventRouter(),
		notifier:  notifier,
		secret:    secret,
		tolerance: tolerance,
	}

	s.router.Register(EventCheckoutCompleted, s.handleCheckoutCompleted)
	s.router.Register(EventSubscriptionCreated, s.handleSubscriptionChange)
	s.router.Register(EventSubscriptionUpdated, s.handleSubscriptionChange)
	s.router.Register(EventSubscriptionDeleted, s.handleSubscriptionDeleted)
	s.router.Register(EventInvoicePaymentSucceeded, s.handleInvoicePaymentSucceeded)
	s.router.Register(EventInvoicePaymentFailed, s.handleInvoicePaymentFailed)

	return s
}

// ProcessWebhook runs one raw delivery through the pipeline. The raw body
// must be the unparsed request bytes; re-serialized JSON never verifies.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte, signatureHeader string) *Result {
	if err := VerifySignature(rawBody, signatureHeader, s.secret, s.tolerance); err != nil {
		return &Result{Err: err}
	}

	ev, err := ParseEvent(rawBody)
	if err != nil {
		return &Result{Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
	}

	started := time.Now()
	record, created, err := s.ledger.Begin(ev, rawBody, signatureHeader)
	if err != nil {
		return &Result{Err: err}
	}
	if !created {
		// Redelivery: the prior record owns the outcome, side effects must
		// not run again. Still-processing records are treated the same way.
		log.Infof("[Webhook] duplicate delivery for event %s (status=%s)", record.EventID, record.Status)
		return &Result{Status: record.Status, Duplicate: true}
	}

	handled, err := s.router.Dispatch(ctx, ev, record)
	switch {
	case err != nil:
		if ferr := s.ledger.Finish(record, models.WebhookStatusFailed, started, err.Error(), string(debug.Stack())); ferr != nil {
			log.Errorf("[Webhook] failed to finalize audit record %d: %v", record.ID, ferr)
		}
		return &Result{Status: models.WebhookStatusFailed, Err: err}
	case !handled:
		if ferr := s.ledger.Finish(record, models.WebhookStatusIgnored, started, "", ""); ferr != nil {
			log.Errorf("[Webhook] failed to finalize audit record %d: %v", record.ID, ferr)
		}
		return &Result{Status: models.WebhookStatusIgnored}
	default:
		if ferr := s.ledger.Finish(record, models.WebhookStatusSuccess, started, "", ""); ferr != nil {
			log.Errorf("[Webhook] failed to finalize audit record %d: %v", record.ID, ferr)
		}
		return &Result{Status: models.WebhookStatusSuccess}
	}
}

func (s *Service) notifyCancellation(userID uint) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		log.Errorf("[Webhook] cancellation notice skipped, user %d lookup failed: %v", userID, err)
		return
	}
	if err := s.notifier.EnqueueCancellationNotice(user.Email, user.Name); err != nil {
		log.Errorf("[Webhook] failed to enqueue cancellation notice for user %d: %v", userID, err)
	}
}

func (s *Service) notifyPaymentFailure(userID uint) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		log.Errorf("[Webhook] payment failure notice skipped, user %d lookup failed: %v", userID, err)
		return
	}
	if err := s.notifier.EnqueuePaymentFailureNotice(user.Email, user.Name); err != nil {
		log.Errorf("[Webhook] failed to enqueue payment failure notice for user %d: %v", userID, err)
	}
}
