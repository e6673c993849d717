package billing

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestVerifySignatureValid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_test"

	header := SignPayload(payload, secret, time.Now())
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":100}`)
	secret := "whsec_test"
	header := SignPayload(payload, secret, time.Now())

	tampered := []byte(`{"id":"evt_1","amount":999}`)
	err := VerifySignature(tampered, header, secret, DefaultSignatureTolerance)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, "whsec_a", time.Now())

	err := VerifySignature(payload, header, "whsec_b", DefaultSignatureTolerance)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong secret, got %v", err)
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	header := SignPayload(payload, secret, time.Now().Add(-10*time.Minute))

	err := VerifySignature(payload, header, secret, DefaultSignatureTolerance)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for stale timestamp, got %v", err)
	}

	// Tolerance zero disables the freshness check.
	if err := VerifySignature(payload, header, secret, 0); err != nil {
		t.Fatalf("expected stale signature to pass with tolerance 0, got %v", err)
	}
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	err := VerifySignature([]byte(`{}`), "", "whsec_test", DefaultSignatureTolerance)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing header, got %v", err)
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	cases := []string{
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		fmt.Sprintf("t=%d", time.Now().Unix()),
		"garbage",
	}
	for _, header := range cases {
		err := VerifySignature([]byte(`{}`), header, "whsec_test", DefaultSignatureTolerance)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("header %q: expected ErrInvalidSignature, got %v", header, err)
		}
	}
}

func TestVerifySignatureAcceptsSecondCandidate(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Now()
	valid := SignPayload(payload, secret, now)
	prefix := fmt.Sprintf("t=%d,", now.Unix())

	// Key rotation sends multiple v1 entries; any match passes.
	header := prefix + "v1=" + strings.Repeat("00", 32) + "," + valid[len(prefix):]
	if err := VerifySignature(payload, header, secret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected one matching candidate to verify, got %v", err)
	}
}
