package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Provider event types the state machine handles. Anything else is recorded
// as ignored by the router.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

// Event is the decoded envelope of a provider webhook payload. The inner
// object stays raw until a handler decodes it into its typed shape.
type Event struct {
	ID         string
	Type       string
	APIVersion string
	Created    time.Time
	Object     json.RawMessage
}

// ParseEvent decodes the envelope of a raw webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var raw struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		APIVersion string `json:"api_version"`
		Created    int64  `json:"created"`
		Data       struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}

	ev := &Event{
		ID:         strings.TrimSpace(raw.ID),
		Type:       strings.TrimSpace(raw.Type),
		APIVersion: strings.TrimSpace(raw.APIVersion),
		Object:     raw.Data.Object,
	}
	if raw.Created > 0 {
		ev.Created = time.Unix(raw.Created, 0)
	}
	return ev, nil
}

// CheckoutSession is the typed payload of checkout.session.completed.
type CheckoutSession struct {
	ID           string
	Customer     string
	Subscription string
	Metadata     map[string]string
}

// DecodeCheckoutSession decodes the event object as a checkout session.
func DecodeCheckoutSession(ev *Event) (*CheckoutSession, error) {
	var raw struct {
		ID           string            `json:"id"`
		Customer     string            `json:"customer"`
		Subscription string            `json:"subscription"`
		Metadata     map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(ev.Object, &raw); err != nil {
		return nil, err
	}
	return &CheckoutSession{
		ID:           strings.TrimSpace(raw.ID),
		Customer:     strings.TrimSpace(raw.Customer),
		Subscription: strings.TrimSpace(raw.Subscription),
		Metadata:     raw.Metadata,
	}, nil
}

// ProviderSubscription is the typed payload of the
// customer.subscription.* events.
type ProviderSubscription struct {
	ID                 string
	Customer           string
	Status             string
	PriceID            string
	ProductID          string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CanceledAt         *time.Time
	TrialEnd           *time.Time
}

// DecodeProviderSubscription decodes the event object as a subscription.
func DecodeProviderSubscription(ev *Event) (*ProviderSubscription, error) {
	var raw struct {
		ID                 string `json:"id"`
		Customer           string `json:"customer"`
		Status             string `json:"status"`
		CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
		CurrentPeriodStart int64  `json:"current_period_start"`
		CurrentPeriodEnd   int64  `json:"current_period_end"`
		CanceledAt         int64  `json:"canceled_at"`
		TrialEnd           int64  `json:"trial_end"`
		Items              struct {
			Data []struct {
				Price struct {
					ID      string `json:"id"`
					Product string `json:"product"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
	}
	if err := json.Unmarshal(ev.Object, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("subscription payload missing id")
	}

	out := &ProviderSubscription{
		ID:                 strings.TrimSpace(raw.ID),
		Customer:           strings.TrimSpace(raw.Customer),
		Status:             strings.TrimSpace(raw.Status),
		CancelAtPeriodEnd:  raw.CancelAtPeriodEnd,
		CurrentPeriodStart: unixPtr(raw.CurrentPeriodStart),
		CurrentPeriodEnd:   unixPtr(raw.CurrentPeriodEnd),
		CanceledAt:         unixPtr(raw.CanceledAt),
		TrialEnd:           unixPtr(raw.TrialEnd),
	}
	if len(raw.Items.Data) > 0 {
		out.PriceID = strings.TrimSpace(raw.Items.Data[0].Price.ID)
		out.ProductID = strings.TrimSpace(raw.Items.Data[0].Price.Product)
	}
	return out, nil
}

// Invoice is the typed payload of the invoice.payment_* events.
type Invoice struct {
	ID                 string
	Customer           string
	Subscription       string
	AmountPaid         int64
	AmountDue          int64
	PriceID            string
	NextPaymentAttempt *time.Time
	PeriodEnd          *time.Time
}

// DecodeInvoice decodes the event object as an invoice.
func DecodeInvoice(ev *Event) (*Invoice, error) {
	var raw struct {
		ID                 string `json:"id"`
		Customer           string `json:"customer"`
		Subscription       string `json:"subscription"`
		AmountPaid         int64  `json:"amount_paid"`
		AmountDue          int64  `json:"amount_due"`
		NextPaymentAttempt int64  `json:"next_payment_attempt"`
		PeriodEnd          int64  `json:"period_end"`
		Lines              struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(ev.Object, &raw); err != nil {
		return nil, err
	}

	out := &Invoice{
		ID:                 strings.TrimSpace(raw.ID),
		Customer:           strings.TrimSpace(raw.Customer),
		Subscription:       strings.TrimSpace(raw.Subscription),
		AmountPaid:         raw.AmountPaid,
		AmountDue:          raw.AmountDue,
		NextPaymentAttempt: unixPtr(raw.NextPaymentAttempt),
		PeriodEnd:          unixPtr(raw.PeriodEnd),
	}
	if len(raw.Lines.Data) > 0 {
		out.PriceID = strings.TrimSpace(raw.Lines.Data[0].Price.ID)
	}
	return out, nil
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
