package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ManuelReschke/SubFox/app/models"
)

// AuditLedger persists one audit record per inbound event and is the
// idempotency boundary of the pipeline: Begin is an atomic find-or-create
// keyed by the provider event id.
type AuditLedger struct {
	repo Repository
}

// NewAuditLedger creates a ledger from an injected repository.
func NewAuditLedger(repo Repository) *AuditLedger {
	return &AuditLedger{repo: repo}
}

// Begin records the event in processing state before any business logic
// runs. When a record for the event id already exists (redelivery), the
// stored record is returned with created=false and the caller must not
// re-execute side effects.
func (l *AuditLedger) Begin(ev *Event, rawBody []byte, signature string) (*models.WebhookEvent, bool, error) {
	eventID := strings.TrimSpace(ev.ID)
	if eventID == "" {
		// Providers should always assign an event id; fall back to a body
		// hash so malformed deliveries still deduplicate.
		sum := sha256.Sum256(rawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	record := &models.WebhookEvent{
		EventID:     eventID,
		EventType:   ev.Type,
		Status:      models.WebhookStatusProcessing,
		RequestBody: string(rawBody),
		Signature:   signature,
		APIVersion:  ev.APIVersion,
	}
	created, stored, err := l.repo.CreateWebhookEventIfNotExists(record)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Finish writes the terminal status, processing duration and error detail
// in a single update. A record only transitions out of processing once; the
// repository guard makes a second Finish a no-op.
func (l *AuditLedger) Finish(record *models.WebhookEvent, status string, startedAt time.Time, errMessage, errStack string) error {
	elapsed := time.Since(startedAt).Milliseconds()
	if err := l.repo.FinalizeWebhookEvent(record.ID, status, elapsed, errMessage, errStack); err != nil {
		return err
	}
	record.Status = status
	record.ProcessingTimeMs = elapsed
	record.ErrorMessage = errMessage
	record.ErrorStack = errStack
	return nil
}

// Trace stores identifiers a handler resolved while processing.
func (l *AuditLedger) Trace(record *models.WebhookEvent, userID uint, customerID, subscriptionID string) {
	// Best effort: trace data must never fail the pipeline.
	_ = l.repo.UpdateWebhookTrace(record.ID, userID, customerID, subscriptionID)
	if userID != 0 {
		record.UserID = userID
	}
	if customerID != "" {
		record.CustomerID = customerID
	}
	if subscriptionID != "" {
		record.SubscriptionID = subscriptionID
	}
}
