package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/SubFox/app/models"
	"github.com/ManuelReschke/SubFox/app/repository"
)

const testSecret = "whsec_service_test"

// fakeRepo is an in-memory billing.Repository with the same observable
// semantics as the GORM implementation: not-found errors, unique event ids,
// the optimistic version check and the finalize-once guard.
type fakeRepo struct {
	users       map[uint]*models.User
	subs        map[uint]*models.Subscription
	events      map[string]*models.WebhookEvent
	prices      map[string]*models.PriceMapping
	nextSubID   uint
	nextEventID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  make(map[uint]*models.User),
		subs:   make(map[uint]*models.Subscription),
		events: make(map[string]*models.WebhookEvent),
		prices: make(map[string]*models.PriceMapping),
	}
}

func (f *fakeRepo) addUser(id uint, name, email string) {
	f.users[id] = &models.User{ID: id, Name: name, Email: email}
}

func (f *fakeRepo) addSubscription(sub models.Subscription) *models.Subscription {
	f.nextSubID++
	sub.ID = f.nextSubID
	f.subs[sub.ID] = &sub
	return &sub
}

func (f *fakeRepo) GetUserByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeRepo) GetSubscriptionByUserID(userID uint) (*models.Subscription, error) {
	for _, sub := range f.subs {
		if sub.UserID == userID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	for _, sub := range f.subs {
		if sub.CustomerID == customerID && customerID != "" {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	copied := *sub
	f.subs[sub.ID] = &copied
	return nil
}

func (f *fakeRepo) UpdateSubscription(sub *models.Subscription) error {
	stored, ok := f.subs[sub.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != sub.Version {
		return repository.ErrVersionConflict
	}
	sub.Version++
	copied := *sub
	f.subs[sub.ID] = &copied
	return nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if stored, ok := f.events[event.EventID]; ok {
		copied := *stored
		return false, &copied, nil
	}
	f.nextEventID++
	event.ID = f.nextEventID
	copied := *event
	f.events[event.EventID] = &copied
	result := copied
	return true, &result, nil
}

func (f *fakeRepo) FinalizeWebhookEvent(id uint, status string, processingTimeMs int64, errMessage, errStack string) error {
	for _, stored := range f.events {
		if stored.ID != id {
			continue
		}
		if stored.Status != models.WebhookStatusProcessing {
			return nil
		}
		now := time.Now()
		stored.Status = status
		stored.ProcessingTimeMs = processingTimeMs
		stored.ErrorMessage = errMessage
		stored.ErrorStack = errStack
		stored.ProcessedAt = &now
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateWebhookTrace(id uint, userID uint, customerID, subscriptionID string) error {
	for _, stored := range f.events {
		if stored.ID != id {
			continue
		}
		if userID != 0 {
			stored.UserID = userID
		}
		if customerID != "" {
			stored.CustomerID = customerID
		}
		if subscriptionID != "" {
			stored.SubscriptionID = subscriptionID
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetPriceMapping(priceID string) (*models.PriceMapping, error) {
	mapping, ok := f.prices[priceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *mapping
	return &copied, nil
}

func (f *fakeRepo) eventByID(eventID string) *models.WebhookEvent {
	return f.events[eventID]
}

type fakeNotifier struct {
	cancellations   []string
	paymentFailures []string
}

func (n *fakeNotifier) EnqueueCancellationNotice(email, username string) error {
	n.cancellations = append(n.cancellations, email)
	return nil
}

func (n *fakeNotifier) EnqueuePaymentFailureNotice(email, username string) error {
	n.paymentFailures = append(n.paymentFailures, email)
	return nil
}

func newTestService(repo *fakeRepo, notifier *fakeNotifier) *Service {
	return NewService(repo, notifier, testSecret, DefaultSignatureTolerance)
}

func envelope(id, eventType string, created int64, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"api_version":"2024-06-20","created":%d,"data":{"object":%s}}`,
		id, eventType, created, object,
	))
}

func deliver(t *testing.T, svc *Service, body []byte) *Result {
	t.Helper()
	header := SignPayload(body, testSecret, time.Now())
	return svc.ProcessWebhook(context.Background(), body, header)
}

func TestProcessWebhookRejectsInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("evt_1", EventSubscriptionUpdated, time.Now().Unix(), `{"id":"sub_1","customer":"cus_1","status":"active"}`)
	header := SignPayload(body, "whsec_other", time.Now())

	res := svc.ProcessWebhook(context.Background(), body, header)
	if !errors.Is(res.Err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", res.Err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("rejected delivery must not create audit records, got %d", len(repo.events))
	}
}

func TestProcessWebhookRejectsUndecodableBody(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	res := deliver(t, svc, []byte(`this is not json`))
	if !errors.Is(res.Err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", res.Err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("undecodable delivery must not create audit records, got %d", len(repo.events))
	}
}

func TestProcessWebhookUnknownEventTypeIgnored(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	res := deliver(t, svc, envelope("evt_unknown", "charge.refunded", time.Now().Unix(), `{"id":"ch_1"}`))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Status != models.WebhookStatusIgnored {
		t.Fatalf("expected ignored status, got %q", res.Status)
	}

	record := repo.eventByID("evt_unknown")
	if record == nil {
		t.Fatal("expected audit record for ignored event")
	}
	if record.Status != models.WebhookStatusIgnored {
		t.Fatalf("expected audit record ignored, got %q", record.Status)
	}
}

func TestProcessWebhookDuplicateDeliveryShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{UserID: 1, CustomerID: "cus_1", Status: models.SubscriptionStatusFree})
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)

	body := envelope("evt_dup", EventSubscriptionDeleted, time.Now().Unix(), `{"id":"sub_1","customer":"cus_1","status":"canceled"}`)

	first := deliver(t, svc, body)
	if first.Err != nil || first.Status != models.WebhookStatusSuccess {
		t.Fatalf("first delivery failed: %+v", first)
	}
	if first.Duplicate {
		t.Fatal("first delivery must not be marked duplicate")
	}

	second := deliver(t, svc, body)
	if second.Err != nil {
		t.Fatalf("redelivery failed: %v", second.Err)
	}
	if !second.Duplicate {
		t.Fatal("redelivery must be marked duplicate")
	}
	if second.Status != models.WebhookStatusSuccess {
		t.Fatalf("redelivery must report stored outcome, got %q", second.Status)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected one audit record, got %d", len(repo.events))
	}
	if len(notifier.cancellations) != 1 {
		t.Fatalf("side effects must not run twice, got %d cancellation notices", len(notifier.cancellations))
	}
}

func TestCheckoutCompletedLinksCustomer(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(7, "tester", "tester@example.com")
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("evt_checkout", EventCheckoutCompleted, time.Now().Unix(),
		`{"id":"cs_1","customer":"cus_7","subscription":"sub_7","metadata":{"user_id":"7"}}`)

	res := deliver(t, svc, body)
	if res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("checkout processing failed: %+v", res)
	}

	sub, err := repo.GetSubscriptionByUserID(7)
	if err != nil {
		t.Fatalf("expected subscription row for user 7: %v", err)
	}
	if sub.CustomerID != "cus_7" {
		t.Fatalf("expected customer linked, got %q", sub.CustomerID)
	}
	if sub.Status != models.SubscriptionStatusFree {
		t.Fatalf("checkout must not change status, got %q", sub.Status)
	}

	record := repo.eventByID("evt_checkout")
	if record.UserID != 7 || record.CustomerID != "cus_7" || record.SubscriptionID != "sub_7" {
		t.Fatalf("expected trace fields on audit record, got %+v", record)
	}
}

func TestCheckoutCompletedMissingMetadataFails(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("evt_nometa", EventCheckoutCompleted, time.Now().Unix(),
		`{"id":"cs_1","customer":"cus_1","metadata":{}}`)

	res := deliver(t, svc, body)
	if !errors.Is(res.Err, ErrMissingMetadata) {
		t.Fatalf("expected ErrMissingMetadata, got %v", res.Err)
	}
	if res.Status != models.WebhookStatusFailed {
		t.Fatalf("expected failed status, got %q", res.Status)
	}

	record := repo.eventByID("evt_nometa")
	if record.Status != models.WebhookStatusFailed {
		t.Fatalf("expected audit record failed, got %q", record.Status)
	}
	if record.ErrorMessage == "" {
		t.Fatal("expected error message on failed audit record")
	}
}

func TestSubscriptionChangeWithoutMatchingCustomerSoftSkips(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("evt_nosub", EventSubscriptionUpdated, time.Now().Unix(),
		`{"id":"sub_x","customer":"cus_unknown","status":"active"}`)

	res := deliver(t, svc, body)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Status != models.WebhookStatusSuccess {
		t.Fatalf("soft skip must still succeed, got %q", res.Status)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("soft skip must not create subscriptions, got %d", len(repo.subs))
	}
}

func TestSubscriptionChangeAppliesProviderState(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{UserID: 1, CustomerID: "cus_1", Status: models.SubscriptionStatusFree})
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("evt_change", EventSubscriptionUpdated, time.Now().Unix(), `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "trialing",
		"cancel_at_period_end": false,
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"trial_end": 1701000000,
		"items": {"data": [{"price": {"id": "price_month", "product": "prod_1"}}]}
	}`)

	res := deliver(t, svc, body)
	if res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("subscription change failed: %+v", res)
	}

	sub, _ := repo.GetSubscriptionByCustomerID("cus_1")
	if sub.Status != models.SubscriptionStatusTrialing {
		t.Fatalf("expected trialing, got %q", sub.Status)
	}
	if sub.SubscriptionID != "sub_1" || sub.PriceID != "price_month" || sub.ProductID != "prod_1" {
		t.Fatalf("expected provider refs applied, got %+v", sub)
	}
	if sub.LastEventAt == nil {
		t.Fatal("expected LastEventAt to be recorded")
	}
}

func TestOutOfOrderEventsKeepLatestState(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{UserID: 1, CustomerID: "cus_1", Status: models.SubscriptionStatusFree})
	svc := newTestService(repo, &fakeNotifier{})

	later := time.Now().Unix()
	earlier := later - 3600

	newer := envelope("evt_newer", EventSubscriptionUpdated, later,
		`{"id":"sub_1","customer":"cus_1","status":"active"}`)
	older := envelope("evt_older", EventSubscriptionUpdated, earlier,
		`{"id":"sub_1","customer":"cus_1","status":"past_due"}`)

	if res := deliver(t, svc, newer); res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("newer event failed: %+v", res)
	}
	res := deliver(t, svc, older)
	if res.Err != nil {
		t.Fatalf("stale event must not error: %v", res.Err)
	}
	if res.Status != models.WebhookStatusSuccess {
		t.Fatalf("stale event must still be acknowledged, got %q", res.Status)
	}

	sub, _ := repo.GetSubscriptionByCustomerID("cus_1")
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("stale event must not overwrite newer state, got %q", sub.Status)
	}
}

func TestInvoicePaymentSucceededRecordsPayment(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{
		UserID: 1, CustomerID: "cus_1",
		Status: models.SubscriptionStatusActive, PriceID: "price_month",
	})
	repo.prices["price_month"] = &models.PriceMapping{
		PriceID:         "price_month",
		BillingInterval: models.BillingIntervalMonth,
		IsActive:        true,
	}
	svc := newTestService(repo, &fakeNotifier{})

	// No next_payment_attempt and no period_end: the price catalog interval
	// decides the next payment date.
	body := envelope("evt_paid", EventInvoicePaymentSucceeded, time.Now().Unix(),
		`{"id":"in_1","customer":"cus_1","subscription":"sub_1","amount_paid":999}`)

	res := deliver(t, svc, body)
	if res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("invoice processing failed: %+v", res)
	}

	sub, _ := repo.GetSubscriptionByCustomerID("cus_1")
	if sub.LastPaymentAmount != 999 {
		t.Fatalf("expected payment amount recorded, got %d", sub.LastPaymentAmount)
	}
	if sub.LastPaymentDate == nil || sub.NextPaymentDate == nil {
		t.Fatalf("expected payment dates set, got %+v", sub)
	}
	wantNext := sub.LastPaymentDate.AddDate(0, 1, 0)
	if !sub.NextPaymentDate.Equal(wantNext) {
		t.Fatalf("expected next payment %v from monthly interval, got %v", wantNext, sub.NextPaymentDate)
	}
}

func TestInvoicePaymentFailedMarksPastDueAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{UserID: 1, CustomerID: "cus_1", Status: models.SubscriptionStatusActive})
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)

	body := envelope("evt_failpay", EventInvoicePaymentFailed, time.Now().Unix(),
		`{"id":"in_1","customer":"cus_1","subscription":"sub_1","amount_due":999}`)

	res := deliver(t, svc, body)
	if res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("invoice failure processing failed: %+v", res)
	}

	sub, _ := repo.GetSubscriptionByCustomerID("cus_1")
	if sub.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %q", sub.Status)
	}
	if len(notifier.paymentFailures) != 1 || notifier.paymentFailures[0] != "tester@example.com" {
		t.Fatalf("expected one payment failure notice, got %v", notifier.paymentFailures)
	}
}

func TestSubscriptionDeletedCancelsAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{
		UserID: 1, CustomerID: "cus_1",
		SubscriptionID: "sub_1", PriceID: "price_month", ProductID: "prod_1",
		Status: models.SubscriptionStatusActive,
	})
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)

	body := envelope("evt_del", EventSubscriptionDeleted, time.Now().Unix(),
		`{"id":"sub_1","customer":"cus_1","status":"canceled"}`)

	res := deliver(t, svc, body)
	if res.Err != nil || res.Status != models.WebhookStatusSuccess {
		t.Fatalf("deletion processing failed: %+v", res)
	}

	sub, _ := repo.GetSubscriptionByCustomerID("cus_1")
	if sub.Status != models.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %q", sub.Status)
	}
	if sub.SubscriptionID != "" || sub.PriceID != "" || sub.ProductID != "" {
		t.Fatalf("expected provider refs cleared, got %+v", sub)
	}
	if sub.CanceledAt == nil {
		t.Fatal("expected canceled_at set")
	}
	if len(notifier.cancellations) != 1 {
		t.Fatalf("expected one cancellation notice, got %v", notifier.cancellations)
	}
}

func TestSubscriptionLifecycleEndToEnd(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(1, "tester", "tester@example.com")
	repo.addSubscription(models.Subscription{UserID: 1, Status: models.SubscriptionStatusFree})
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)

	base := time.Now().Unix()

	steps := [][]byte{
		envelope("evt_lc_1", EventCheckoutCompleted, base,
			`{"id":"cs_1","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":"1"}}`),
		envelope("evt_lc_2", EventSubscriptionCreated, base+1,
			`{"id":"sub_1","customer":"cus_1","status":"trialing","items":{"data":[{"price":{"id":"price_month","product":"prod_1"}}]}}`),
		envelope("evt_lc_3", EventInvoicePaymentFailed, base+2,
			`{"id":"in_1","customer":"cus_1","subscription":"sub_1","amount_due":999}`),
		envelope("evt_lc_4", EventSubscriptionDeleted, base+3,
			`{"id":"sub_1","customer":"cus_1","status":"canceled"}`),
	}
	wantStatus := []string{
		models.SubscriptionStatusFree,
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCanceled,
	}

	for i, body := range steps {
		res := deliver(t, svc, body)
		if res.Err != nil || res.Status != models.WebhookStatusSuccess {
			t.Fatalf("step %d failed: %+v", i+1, res)
		}
		sub, err := repo.GetSubscriptionByUserID(1)
		if err != nil {
			t.Fatalf("step %d: subscription lookup failed: %v", i+1, err)
		}
		if sub.Status != wantStatus[i] {
			t.Fatalf("step %d: expected status %q, got %q", i+1, wantStatus[i], sub.Status)
		}
	}

	if len(notifier.paymentFailures) != 1 {
		t.Fatalf("expected one payment failure notice, got %v", notifier.paymentFailures)
	}
	if len(notifier.cancellations) != 1 {
		t.Fatalf("expected one cancellation notice, got %v", notifier.cancellations)
	}
	if len(repo.events) != len(steps) {
		t.Fatalf("expected %d audit records, got %d", len(steps), len(repo.events))
	}
	for id, record := range repo.events {
		if record.Status != models.WebhookStatusSuccess {
			t.Fatalf("audit record %s not successful: %q", id, record.Status)
		}
	}
}

func TestEventWithoutIDFallsBackToBodyHash(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	body := envelope("", "charge.refunded", time.Now().Unix(), `{"id":"ch_1"}`)

	first := deliver(t, svc, body)
	if first.Err != nil || first.Duplicate {
		t.Fatalf("first delivery failed: %+v", first)
	}
	second := deliver(t, svc, body)
	if !second.Duplicate {
		t.Fatal("body-hash fallback must still deduplicate redeliveries")
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one audit record, got %d", len(repo.events))
	}
}
