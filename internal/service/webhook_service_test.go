package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"registration-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	payments      map[string]*models.Payment
	transactions  map[string]*models.Transaction
	registrations map[string]*models.EventRegistration
	transferCodes map[string]*models.RegistrationTransferCode
	purchases     map[string]*models.Purchase
	tenants       map[string]*models.Tenant

	auditEntries []models.ActivityLog
	created      []*models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:      map[string]*models.Payment{},
		transactions:  map[string]*models.Transaction{},
		registrations: map[string]*models.EventRegistration{},
		transferCodes: map[string]*models.RegistrationTransferCode{},
		purchases:     map[string]*models.Purchase{},
		tenants:       map[string]*models.Tenant{},
	}
}

func (f *fakeStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	f.auditEntries = append(f.auditEntries, *entry)
	return nil
}

func (f *fakeStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return f.payments[id], nil
}

func (f *fakeStore) GetPaymentByPaymentIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.PaymentIntent != nil && *p.PaymentIntent == intentID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.CheckoutSession == sessionID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) AttachPaymentIntent(ctx context.Context, paymentID, intentID string) error {
	if p, ok := f.payments[paymentID]; ok {
		p.PaymentIntent = &intentID
	}
	return nil
}

func (f *fakeStore) UpdatePaymentOnEvent(ctx context.Context, paymentID string, upd *models.PaymentUpdate) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment not found: %s", paymentID)
	}
	p.Status = upd.Status
	p.Events = upd.Events
	if upd.Shipping != nil {
		p.Shipping = upd.Shipping
	}
	if upd.PaymentMethod != nil {
		p.PaymentMethod = upd.PaymentMethod
	}
	if upd.PaymentMethodType != nil {
		p.PaymentMethodType = upd.PaymentMethodType
	}
	if upd.FeeAmount != nil {
		p.FeeAmount = upd.FeeAmount
	}
	if upd.NetAmount != nil {
		p.NetAmount = upd.NetAmount
	}
	if upd.RefundedIncrement != nil {
		p.RefundedAmount += *upd.RefundedIncrement
	}
	return nil
}

func (f *fakeStore) GetTransactionsForPayment(ctx context.Context, paymentID, direction string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.transactions {
		if tx.PaymentID == nil || *tx.PaymentID != paymentID {
			continue
		}
		if direction != "" && tx.Direction != direction {
			continue
		}
		loaded := *tx
		f.loadRelations(&loaded)
		out = append(out, loaded)
	}
	return out, nil
}

func (f *fakeStore) loadRelations(tx *models.Transaction) {
	if tx.EventRegistrationID != nil {
		if reg, ok := f.registrations[*tx.EventRegistrationID]; ok {
			loaded := *reg
			if loaded.TransferCodeID != nil {
				if code, ok := f.transferCodes[*loaded.TransferCodeID]; ok {
					codeCopy := *code
					loaded.TransferCode = &codeCopy
				}
			}
			tx.EventRegistration = &loaded
		}
	}
	if tx.PurchaseID != nil {
		if purchase, ok := f.purchases[*tx.PurchaseID]; ok {
			purchaseCopy := *purchase
			tx.Purchase = &purchaseCopy
		}
	}
	if tx.TenantID != nil {
		if tenant, ok := f.tenants[*tx.TenantID]; ok {
			tenantCopy := *tenant
			tx.Tenant = &tenantCopy
		}
	}
}

func (f *fakeStore) UpdateTransactionStatus(ctx context.Context, transactionID, status string) error {
	if tx, ok := f.transactions[transactionID]; ok {
		tx.Status = status
	}
	return nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	tx.CreatedAt = time.Now()
	f.transactions[tx.ID] = tx
	f.created = append(f.created, tx)
	return nil
}

func (f *fakeStore) FindFeeTransaction(ctx context.Context, paymentID string, amount float64) (*models.Transaction, error) {
	for _, tx := range f.transactions {
		if tx.PaymentID != nil && *tx.PaymentID == paymentID &&
			tx.Direction == models.DirectionOrgToExternal && tx.Amount == amount {
			return tx, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetRegistrationByID(ctx context.Context, id string) (*models.EventRegistration, error) {
	return f.registrations[id], nil
}

func (f *fakeStore) UpdateRegistrationStatus(ctx context.Context, registrationID, status string, reason *string) error {
	if reg, ok := f.registrations[registrationID]; ok {
		reg.Status = status
		reg.CancellationReason = reason
	}
	return nil
}

func (f *fakeStore) GetRegistrationPaymentContext(ctx context.Context, registrationID string) (*models.RegistrationPaymentContext, error) {
	for _, tx := range f.transactions {
		if tx.EventRegistrationID == nil || *tx.EventRegistrationID != registrationID {
			continue
		}
		if tx.Direction != models.DirectionUserToOrg {
			continue
		}
		rctx := &models.RegistrationPaymentContext{Transaction: tx}
		if tx.PaymentID != nil {
			rctx.Payment = f.payments[*tx.PaymentID]
		}
		if tx.TenantID != nil {
			if tenant, ok := f.tenants[*tx.TenantID]; ok {
				rctx.ConnectAccountID = tenant.StripeConnectAccountID
			}
		}
		return rctx, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateTransferCodeStatus(ctx context.Context, codeID, status string) error {
	if code, ok := f.transferCodes[codeID]; ok {
		code.Status = status
	}
	return nil
}

func (f *fakeStore) ResetTransferCode(ctx context.Context, codeID string) error {
	if code, ok := f.transferCodes[codeID]; ok {
		code.Status = models.RegistrationStatusPending
		code.RegistrationCreatedID = nil
	}
	return nil
}

func (f *fakeStore) UpdatePurchaseStatus(ctx context.Context, purchaseID, status string, reason *string) error {
	if purchase, ok := f.purchases[purchaseID]; ok {
		purchase.Status = status
		purchase.CancellationReason = reason
	}
	return nil
}

func (f *fakeStore) auditWithSeverity(severity string) []models.ActivityLog {
	var out []models.ActivityLog
	for _, e := range f.auditEntries {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// fakeProvider serves canned provider objects and records refund calls.
type fakeProvider struct {
	intent    *stripe.PaymentIntent
	charge    *stripe.Charge
	balanceTx *stripe.BalanceTransaction
	refunds   []string
	refundErr error
}

func (f *fakeProvider) PaymentIntent(ctx context.Context, id, accountID string) (*stripe.PaymentIntent, error) {
	return f.intent, nil
}

func (f *fakeProvider) Charge(ctx context.Context, id, accountID string) (*stripe.Charge, error) {
	return f.charge, nil
}

func (f *fakeProvider) BalanceTransaction(ctx context.Context, id, accountID string) (*stripe.BalanceTransaction, error) {
	return f.balanceTx, nil
}

func (f *fakeProvider) CreateRefund(ctx context.Context, paymentIntentID, accountID string) (*stripe.Refund, error) {
	f.refunds = append(f.refunds, paymentIntentID)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &stripe.Refund{ID: "re_1"}, nil
}

func strPtr(s string) *string { return &s }

func eventLogLen(t *testing.T, p *models.Payment) int {
	t.Helper()
	events, err := p.EventLog()
	require.NoError(t, err)
	return len(events)
}

func rawEvent(eventType stripe.EventType, object string) *stripe.Event {
	return &stripe.Event{
		ID:   "evt_" + string(eventType),
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

// seedSucceededFixture builds payment pay_1 with a pending USER_TO_ORG
// transaction tx_1 and pending registration reg_1, plus the provider state a
// succeeded intent needs.
func seedSucceededFixture(store *fakeStore, provider *fakeProvider) {
	store.tenants["tenant_1"] = &models.Tenant{
		ID: "tenant_1", Name: "ESN", StripeConnectAccountID: strPtr("acct_1"),
	}
	store.payments["pay_1"] = &models.Payment{
		ID:              "pay_1",
		CheckoutSession: "cs_1",
		Status:          "processing",
		Events:          []byte(`[{"type":"payment_intent.processing","name":"processing","date":1}]`),
	}
	store.registrations["reg_1"] = &models.EventRegistration{
		ID: "reg_1", EventID: "event_1", UserID: "user_1",
		Status: models.RegistrationStatusPending,
	}
	store.transactions["tx_1"] = &models.Transaction{
		ID:                  "tx_1",
		Direction:           models.DirectionUserToOrg,
		Status:              models.TransactionStatusPending,
		Amount:              50,
		UserID:              strPtr("user_1"),
		TenantID:            strPtr("tenant_1"),
		EventRegistrationID: strPtr("reg_1"),
		PaymentID:           strPtr("pay_1"),
	}

	provider.intent = &stripe.PaymentIntent{
		ID:           "pi_1",
		Status:       stripe.PaymentIntentStatusSucceeded,
		LatestCharge: &stripe.Charge{ID: "ch_1"},
	}
	provider.charge = &stripe.Charge{
		ID:            "ch_1",
		PaymentMethod: "pm_1",
		PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
			Type: stripe.ChargePaymentMethodDetailsTypeCard,
		},
		BalanceTransaction: &stripe.BalanceTransaction{ID: "txn_1"},
	}
	provider.balanceTx = &stripe.BalanceTransaction{ID: "txn_1", Fee: 175, Net: 4825}
}

const succeededPayload = `{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"paymentId":"pay_1"}}`

func TestSucceededConfirmsTransactionAndRegistration(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)

	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload), "")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusConfirmed, store.transactions["tx_1"].Status)
	assert.Equal(t, models.RegistrationStatusSuccessful, store.registrations["reg_1"].Status)

	payment := store.payments["pay_1"]
	assert.Equal(t, "succeeded", payment.Status)
	require.NotNil(t, payment.PaymentIntent)
	assert.Equal(t, "pi_1", *payment.PaymentIntent)
	require.NotNil(t, payment.FeeAmount)
	assert.Equal(t, int64(175), *payment.FeeAmount)
	require.NotNil(t, payment.NetAmount)
	assert.Equal(t, int64(4825), *payment.NetAmount)
	assert.Equal(t, 2, eventLogLen(t, payment))

	require.Len(t, store.created, 1)
	fee := store.created[0]
	assert.Equal(t, models.DirectionOrgToExternal, fee.Direction)
	assert.Equal(t, 1.75, fee.Amount)
	assert.Equal(t, models.TransactionStatusConfirmed, fee.Status)
}

func TestSucceededRedeliveryCreatesOneFeeTransaction(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)

	for i := 0; i < 2; i++ {
		err := svc.HandleEvent(context.Background(),
			rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload), "")
		require.NoError(t, err)
	}

	feeCount := 0
	for _, tx := range store.created {
		if tx.Direction == models.DirectionOrgToExternal {
			feeCount++
		}
	}
	assert.Equal(t, 1, feeCount)
}

func TestSucceededResolvesTransferCode(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	// The new registration (reg_1) carries code_1 moving the slot away from
	// reg_old, which was paid through pay_old.
	store.transferCodes["code_1"] = &models.RegistrationTransferCode{
		ID:                     "code_1",
		Status:                 models.RegistrationStatusPending,
		RegistrationToRemoveID: strPtr("reg_old"),
		RegistrationCreatedID:  strPtr("reg_1"),
	}
	store.registrations["reg_1"].TransferCodeID = strPtr("code_1")
	store.registrations["reg_old"] = &models.EventRegistration{
		ID: "reg_old", EventID: "event_1", UserID: "user_old",
		Status: models.RegistrationStatusSuccessful,
	}
	store.payments["pay_old"] = &models.Payment{
		ID:            "pay_old",
		Status:        "succeeded",
		PaymentIntent: strPtr("pi_old"),
		Events:        []byte(`[]`),
	}
	store.transactions["tx_old"] = &models.Transaction{
		ID:                  "tx_old",
		Direction:           models.DirectionUserToOrg,
		Status:              models.TransactionStatusConfirmed,
		UserID:              strPtr("user_old"),
		TenantID:            strPtr("tenant_1"),
		EventRegistrationID: strPtr("reg_old"),
		PaymentID:           strPtr("pay_old"),
	}

	svc := NewWebhookService(store, provider, nil, nil)

	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload), "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationStatusCancelled, store.registrations["reg_old"].Status)
	assert.Equal(t, models.RegistrationStatusSuccessful, store.registrations["reg_1"].Status)
	assert.Equal(t, models.RegistrationStatusSuccessful, store.transferCodes["code_1"].Status)
	assert.Equal(t, []string{"pi_old"}, provider.refunds)
}

func TestCanceledRevertsTransferCode(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	store.payments["pay_1"].PaymentIntent = strPtr("pi_1")
	store.transferCodes["code_1"] = &models.RegistrationTransferCode{
		ID:                     "code_1",
		Status:                 models.RegistrationStatusPending,
		RegistrationToRemoveID: strPtr("reg_old"),
		RegistrationCreatedID:  strPtr("reg_1"),
	}
	store.registrations["reg_1"].TransferCodeID = strPtr("code_1")
	store.registrations["reg_old"] = &models.EventRegistration{
		ID: "reg_old", EventID: "event_1", UserID: "user_old",
		Status: models.RegistrationStatusCancelled,
	}

	provider.intent = &stripe.PaymentIntent{
		ID:     "pi_1",
		Status: stripe.PaymentIntentStatusCanceled,
	}

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"pi_1","object":"payment_intent","status":"canceled","metadata":{"paymentId":"pay_1"}}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentCanceled, payload), "")
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationStatusSuccessful, store.registrations["reg_old"].Status)
	assert.Equal(t, models.RegistrationStatusCancelled, store.registrations["reg_1"].Status)

	code := store.transferCodes["code_1"]
	assert.Equal(t, models.RegistrationStatusPending, code.Status)
	assert.Nil(t, code.RegistrationCreatedID)

	assert.Equal(t, models.TransactionStatusCancelled, store.transactions["tx_1"].Status)
}

func TestLookupMissAuditsWithoutMutation(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	provider.intent = &stripe.PaymentIntent{ID: "pi_missing", Status: stripe.PaymentIntentStatusSucceeded}

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"pi_missing","object":"payment_intent","status":"succeeded","metadata":{}}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, payload), "")
	require.NoError(t, err)

	require.Len(t, store.auditEntries, 1)
	assert.Equal(t, models.SeverityWarning, store.auditEntries[0].Severity)
	assert.Equal(t, "No database payment found for incoming event", store.auditEntries[0].Message)
	assert.Empty(t, store.created)
}

func TestCanceledWithoutConnectAccountIsFatal(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	store.payments["pay_1"].PaymentIntent = strPtr("pi_1")
	store.tenants["tenant_1"].StripeConnectAccountID = nil

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"pi_1","object":"payment_intent","status":"canceled","metadata":{"paymentId":"pay_1"}}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentCanceled, payload), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConnectAccount)

	warnings := store.auditWithSeverity(models.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "No account id found for incoming event", warnings[0].Message)
}

func TestChargeRefundedIncrementsAndCreatesReversal(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	store.payments["pay_1"].PaymentIntent = strPtr("pi_1")
	store.payments["pay_1"].Status = "succeeded"

	provider.charge = &stripe.Charge{
		ID:                 "ch_1",
		AmountRefunded:     500,
		BalanceTransaction: &stripe.BalanceTransaction{ID: "txn_1"},
	}
	provider.balanceTx = &stripe.BalanceTransaction{ID: "txn_1", Fee: -15, Net: -485}

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"ch_1","object":"charge","amount_refunded":500,"payment_intent":"pi_1"}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypeChargeRefunded, payload), "")
	require.NoError(t, err)

	payment := store.payments["pay_1"]
	assert.Equal(t, "refunded", payment.Status)
	assert.Equal(t, int64(500), payment.RefundedAmount)

	require.Len(t, store.created, 1)
	reversal := store.created[0]
	assert.Equal(t, models.DirectionOrgToUser, reversal.Direction)
	assert.Equal(t, 5.00, reversal.Amount)
	assert.Equal(t, models.TransactionStatusConfirmed, reversal.Status)
}

func TestCheckoutSessionExpiredCancelsEverything(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	store.purchases["pur_1"] = &models.Purchase{
		ID: "pur_1", Status: models.PurchaseStatusPending,
	}
	store.transactions["tx_1"].PurchaseID = strPtr("pur_1")

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"cs_1","object":"checkout.session","status":"expired"}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypeCheckoutSessionExpired, payload), "")
	require.NoError(t, err)

	assert.Equal(t, "expired", store.payments["pay_1"].Status)
	assert.Equal(t, models.TransactionStatusCancelled, store.transactions["tx_1"].Status)
	assert.Equal(t, models.RegistrationStatusCancelled, store.registrations["reg_1"].Status)
	require.NotNil(t, store.registrations["reg_1"].CancellationReason)
	assert.Equal(t, "Payment intent timed out", *store.registrations["reg_1"].CancellationReason)
	assert.Equal(t, models.PurchaseStatusCancelled, store.purchases["pur_1"].Status)
}

func TestEventLogIsAppendOnly(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)
	payment := store.payments["pay_1"]
	lastLen := eventLogLen(t, payment)

	deliveries := []*stripe.Event{
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload),
		rawEvent(stripe.EventTypePaymentIntentPaymentFailed,
			`{"id":"pi_1","object":"payment_intent","status":"requires_payment_method"}`),
	}
	for _, event := range deliveries {
		require.NoError(t, svc.HandleEvent(context.Background(), event, ""))
		current := eventLogLen(t, payment)
		assert.GreaterOrEqual(t, current, lastLen)
		lastLen = current
	}
}

func TestCorruptEventLogIsAuditedNotFatal(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)
	store.payments["pay_1"].Events = []byte(`{"not":"an array"}`)

	svc := NewWebhookService(store, provider, nil, nil)

	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload), "")
	require.NoError(t, err)

	warnings := store.auditWithSeverity(models.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Saved payment events are not an array", warnings[0].Message)
	// The corrupt log blocked the update before any transaction work.
	assert.Equal(t, models.TransactionStatusPending, store.transactions["tx_1"].Status)
}

func TestSucceededStatusMismatchIsSkipped(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)
	provider.intent.Status = stripe.PaymentIntentStatusProcessing

	svc := NewWebhookService(store, provider, nil, nil)

	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentSucceeded, succeededPayload), "")
	require.NoError(t, err)

	assert.Equal(t, "processing", store.payments["pay_1"].Status)
	assert.Equal(t, models.TransactionStatusPending, store.transactions["tx_1"].Status)

	warnings := store.auditWithSeverity(models.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Payment intent status is not succeeded", warnings[0].Message)
}

func TestUnhandledEventTypeIsNoOp(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)

	err := svc.HandleEvent(context.Background(),
		rawEvent("customer.created", `{"id":"cus_1","object":"customer"}`), "")
	require.NoError(t, err)

	assert.Empty(t, store.auditEntries)
	assert.Equal(t, "processing", store.payments["pay_1"].Status)
}

func TestProcessingRecordsPaymentMethod(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"pi_1","object":"payment_intent","status":"processing","metadata":{"paymentId":"pay_1"},"latest_charge":"ch_1"}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentProcessing, payload), "")
	require.NoError(t, err)

	payment := store.payments["pay_1"]
	assert.Equal(t, "processing", payment.Status)
	require.NotNil(t, payment.PaymentMethod)
	assert.Equal(t, "pm_1", *payment.PaymentMethod)
	require.NotNil(t, payment.PaymentMethodType)
	assert.Equal(t, "card", *payment.PaymentMethodType)
	assert.Equal(t, 2, eventLogLen(t, payment))
}

func TestProcessingWithoutChargeIsAudited(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"pi_1","object":"payment_intent","status":"processing","metadata":{"paymentId":"pay_1"}}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypePaymentIntentProcessing, payload), "")
	require.NoError(t, err)

	warnings := store.auditWithSeverity(models.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "No charges found for payment intent", warnings[0].Message)
	assert.Equal(t, 1, eventLogLen(t, store.payments["pay_1"]))
}

func TestDisputeAppendsEvent(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	seedSucceededFixture(store, provider)
	store.payments["pay_1"].PaymentIntent = strPtr("pi_1")

	svc := NewWebhookService(store, provider, nil, nil)

	payload := `{"id":"ch_1","object":"charge","status":"succeeded","payment_intent":"pi_1"}`
	err := svc.HandleEvent(context.Background(),
		rawEvent(stripe.EventTypeChargeDisputeCreated, payload), "")
	require.NoError(t, err)

	payment := store.payments["pay_1"]
	events, decodeErr := payment.EventLog()
	require.NoError(t, decodeErr)
	require.Len(t, events, 2)
	assert.Equal(t, "disputed", events[1].Name)
}
