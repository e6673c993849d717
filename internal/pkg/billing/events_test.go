package billing

import (
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "customer.subscription.updated",
		"api_version": "2024-06-20",
		"created": 1700000000,
		"data": {"object": {"id": "sub_1"}}
	}`)

	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if ev.ID != "evt_123" {
		t.Fatalf("unexpected event id %q", ev.ID)
	}
	if ev.Type != "customer.subscription.updated" {
		t.Fatalf("unexpected event type %q", ev.Type)
	}
	if ev.APIVersion != "2024-06-20" {
		t.Fatalf("unexpected api version %q", ev.APIVersion)
	}
	if !ev.Created.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected created time %v", ev.Created)
	}
	if len(ev.Object) == 0 {
		t.Fatal("expected raw object to be preserved")
	}
}

func TestParseEventRejectsMissingType(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"id":"evt_1"}`)); err == nil {
		t.Fatal("expected error for payload without type")
	}
}

func TestParseEventRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseEvent([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestDecodeCheckoutSession(t *testing.T) {
	ev := &Event{Object: []byte(`{
		"id": "cs_1",
		"customer": "cus_1",
		"subscription": "sub_1",
		"metadata": {"user_id": "42"}
	}`)}

	session, err := DecodeCheckoutSession(ev)
	if err != nil {
		t.Fatalf("DecodeCheckoutSession failed: %v", err)
	}
	if session.Customer != "cus_1" || session.Subscription != "sub_1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Metadata["user_id"] != "42" {
		t.Fatalf("expected user_id metadata, got %v", session.Metadata)
	}
}

func TestDecodeProviderSubscription(t *testing.T) {
	ev := &Event{Object: []byte(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "trialing",
		"cancel_at_period_end": true,
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"trial_end": 1701000000,
		"items": {"data": [{"price": {"id": "price_1", "product": "prod_1"}}]}
	}`)}

	ps, err := DecodeProviderSubscription(ev)
	if err != nil {
		t.Fatalf("DecodeProviderSubscription failed: %v", err)
	}
	if ps.ID != "sub_1" || ps.Customer != "cus_1" || ps.Status != "trialing" {
		t.Fatalf("unexpected subscription %+v", ps)
	}
	if ps.PriceID != "price_1" || ps.ProductID != "prod_1" {
		t.Fatalf("expected price from first item, got %q/%q", ps.PriceID, ps.ProductID)
	}
	if !ps.CancelAtPeriodEnd {
		t.Fatal("expected cancel_at_period_end to be set")
	}
	if ps.CurrentPeriodStart == nil || !ps.CurrentPeriodStart.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected period start %v", ps.CurrentPeriodStart)
	}
	if ps.CanceledAt != nil {
		t.Fatalf("expected absent canceled_at to stay nil, got %v", ps.CanceledAt)
	}
}

func TestDecodeProviderSubscriptionRequiresID(t *testing.T) {
	ev := &Event{Object: []byte(`{"customer":"cus_1","status":"active"}`)}
	if _, err := DecodeProviderSubscription(ev); err == nil {
		t.Fatal("expected error for subscription payload without id")
	}
}

func TestDecodeInvoice(t *testing.T) {
	ev := &Event{Object: []byte(`{
		"id": "in_1",
		"customer": "cus_1",
		"subscription": "sub_1",
		"amount_paid": 999,
		"amount_due": 999,
		"next_payment_attempt": 1702592000,
		"lines": {"data": [{"price": {"id": "price_1"}}]}
	}`)}

	inv, err := DecodeInvoice(ev)
	if err != nil {
		t.Fatalf("DecodeInvoice failed: %v", err)
	}
	if inv.AmountPaid != 999 {
		t.Fatalf("unexpected amount paid %d", inv.AmountPaid)
	}
	if inv.PriceID != "price_1" {
		t.Fatalf("expected price from first line, got %q", inv.PriceID)
	}
	if inv.NextPaymentAttempt == nil || !inv.NextPaymentAttempt.Equal(time.Unix(1702592000, 0)) {
		t.Fatalf("unexpected next payment attempt %v", inv.NextPaymentAttempt)
	}
	if inv.PeriodEnd != nil {
		t.Fatalf("expected absent period_end to stay nil, got %v", inv.PeriodEnd)
	}
}
