package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// ErrNoConnectAccount is the fatal precondition for handlers that must scope
// provider calls to a tenant's connected account.
var ErrNoConnectAccount = errors.New("no account id found for incoming event")

// Store is the persistence surface the reconciliation handlers need.
// *store.Store satisfies it.
type Store interface {
	AuditStore

	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByPaymentIntent(ctx context.Context, intentID string) (*models.Payment, error)
	GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error)
	AttachPaymentIntent(ctx context.Context, paymentID, intentID string) error
	UpdatePaymentOnEvent(ctx context.Context, paymentID string, upd *models.PaymentUpdate) error

	GetTransactionsForPayment(ctx context.Context, paymentID, direction string) ([]models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID, status string) error
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	FindFeeTransaction(ctx context.Context, paymentID string, amount float64) (*models.Transaction, error)

	GetRegistrationByID(ctx context.Context, id string) (*models.EventRegistration, error)
	UpdateRegistrationStatus(ctx context.Context, registrationID, status string, reason *string) error
	GetRegistrationPaymentContext(ctx context.Context, registrationID string) (*models.RegistrationPaymentContext, error)
	UpdateTransferCodeStatus(ctx context.Context, codeID, status string) error
	ResetTransferCode(ctx context.Context, codeID string) error

	UpdatePurchaseStatus(ctx context.Context, purchaseID, status string, reason *string) error
}

// Provider is the outbound payment-provider surface.
// *stripeclient.Client satisfies it.
type Provider interface {
	PaymentIntent(ctx context.Context, id, connectedAccountID string) (*stripe.PaymentIntent, error)
	Charge(ctx context.Context, id, connectedAccountID string) (*stripe.Charge, error)
	BalanceTransaction(ctx context.Context, id, connectedAccountID string) (*stripe.BalanceTransaction, error)
	CreateRefund(ctx context.Context, paymentIntentID, connectedAccountID string) (*stripe.Refund, error)
}

// Publisher emits reconciliation outcome events.
// *broker.EventPublisher satisfies it.
type Publisher interface {
	PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentCanceled(ctx context.Context, event *models.PaymentCanceledEvent) error
	PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error
	PublishRegistrationMoved(ctx context.Context, event *models.RegistrationMovedEvent) error
}

// Deduper short-circuits duplicate webhook deliveries.
// *redisclient.Client satisfies it.
type Deduper interface {
	MarkEventSeen(ctx context.Context, eventID string) (bool, error)
}

type handlerFunc func(ctx context.Context, event *stripe.Event, connectedAccountID string) error

// WebhookService reconciles provider payment-lifecycle events against the
// local domain model. Handlers are idempotent; duplicate and out-of-order
// deliveries converge on the provider-confirmed state, and anomalies are
// audited instead of aborting the process.
type WebhookService struct {
	store     Store
	provider  Provider
	publisher Publisher
	dedup     Deduper
	transfers *TransferService
	audit     *AuditLogger
	logger    *zap.Logger
	handlers  map[stripe.EventType]handlerFunc
}

// NewWebhookService creates a new webhook reconciliation service. The
// publisher and deduper may be nil; both are optional fast paths.
func NewWebhookService(store Store, provider Provider, publisher Publisher, dedup Deduper) *WebhookService {
	logger := util.GetLogger()
	audit := NewAuditLogger(store, logger)

	s := &WebhookService{
		store:     store,
		provider:  provider,
		publisher: publisher,
		dedup:     dedup,
		transfers: NewTransferService(store, provider, publisher, audit),
		audit:     audit,
		logger:    logger,
	}

	s.handlers = map[stripe.EventType]handlerFunc{
		stripe.EventTypeCheckoutSessionExpired:      s.handleCheckoutSessionExpired,
		stripe.EventTypePaymentIntentProcessing:     s.handlePaymentProcessing,
		stripe.EventTypePaymentIntentSucceeded:      s.handlePaymentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed:  s.handlePaymentFailed,
		stripe.EventTypePaymentIntentCanceled:       s.handlePaymentCanceled,
		stripe.EventTypeChargeDisputeCreated:        s.handleDisputeCreated,
		stripe.EventTypeChargeRefunded:              s.handleChargeRefunded,
	}

	return s
}

// HandleEvent dispatches a verified event to the handler for its type.
// Unknown types are logged and acknowledged without side effects.
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	util.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()
	start := time.Now()
	defer func() {
		util.WebhookProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	if s.dedup != nil && event.ID != "" {
		first, err := s.dedup.MarkEventSeen(ctx, event.ID)
		if err != nil {
			s.logger.Warn("Event dedup check failed, processing anyway",
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if !first {
			util.WebhookEventsDuplicateTotal.Inc()
			s.logger.Info("Skipping duplicate webhook delivery",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)))
			return nil
		}
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		util.WebhookEventsUnhandledTotal.WithLabelValues(string(event.Type)).Inc()
		s.logger.Info("Unhandled event type", zap.String("type", string(event.Type)))
		return nil
	}

	s.logger.Info("Processing event",
		zap.String("type", string(event.Type)),
		zap.String("event_id", event.ID))

	if err := handler(ctx, event, connectedAccountID); err != nil {
		util.WebhookHandlerFailuresTotal.WithLabelValues(string(event.Type)).Inc()
		return fmt.Errorf("handling %s: %w", event.Type, err)
	}
	return nil
}

// lookupPaymentByIntent resolves the local payment for an intent, preferring
// the internal id carried in metadata and backfilling the intent reference
// when it was found that way. Returns (nil, nil) on a miss.
func (s *WebhookService) lookupPaymentByIntent(ctx context.Context, intent *stripe.PaymentIntent) (*models.Payment, error) {
	if id := intent.Metadata["paymentId"]; id != "" {
		payment, err := s.store.GetPaymentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			if err := s.store.AttachPaymentIntent(ctx, payment.ID, intent.ID); err != nil {
				return nil, err
			}
			payment.PaymentIntent = &intent.ID
			return payment, nil
		}
	}
	return s.store.GetPaymentByPaymentIntent(ctx, intent.ID)
}

func (s *WebhookService) handleCheckoutSessionExpired(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.audit.Warn(ctx, "Malformed checkout session payload", event.Data.Raw, nil)
		return nil
	}

	payment, err := s.store.GetPaymentByCheckoutSession(ctx, session.ID)
	if err != nil {
		return err
	}
	return s.cancelPayment(ctx, payment, "checkout.session", string(session.Status), event.Data.Raw)
}

func (s *WebhookService) handlePaymentProcessing(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.audit.Warn(ctx, "Malformed payment intent payload", event.Data.Raw, nil)
		return nil
	}

	payment, err := s.lookupPaymentByIntent(ctx, &intent)
	if err != nil {
		return err
	}
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}
	if intent.LatestCharge == nil {
		s.audit.Warn(ctx, "No charges found for payment intent", event.Data.Raw, nil)
		return nil
	}

	charge, err := s.provider.Charge(ctx, intent.LatestCharge.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving charge: %w", err)
	}

	events, err := payment.EventLog()
	if err != nil {
		s.audit.Warn(ctx, "Saved payment events are not an array", event.Data.Raw, payment)
		return nil
	}
	events = append(events, models.PaymentEvent{
		Type: "payment_intent.processing",
		Name: "processing",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	upd := &models.PaymentUpdate{
		Status:        string(intent.Status),
		Events:        eventsJSON,
		PaymentMethod: &charge.PaymentMethod,
	}
	if charge.PaymentMethodDetails != nil {
		pmType := string(charge.PaymentMethodDetails.Type)
		upd.PaymentMethodType = &pmType
	}
	if intent.Shipping != nil {
		if shipping, err := json.Marshal(intent.Shipping); err == nil {
			upd.Shipping = shipping
		}
	}

	return s.store.UpdatePaymentOnEvent(ctx, payment.ID, upd)
}

func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var reported stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &reported); err != nil {
		s.audit.Warn(ctx, "Malformed payment intent payload", event.Data.Raw, nil)
		return nil
	}

	payment, err := s.lookupPaymentByIntent(ctx, &reported)
	if err != nil {
		return err
	}
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}

	// Never trust the payload's status field; redeliveries can arrive after
	// the intent has moved on. Confirm against the provider's live state.
	intent, err := s.provider.PaymentIntent(ctx, reported.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		s.audit.Warn(ctx, "Payment intent status is not succeeded", intent, &reported)
		return nil
	}
	if intent.LatestCharge == nil {
		s.audit.Warn(ctx, "No charges found for payment intent", intent, nil)
		return nil
	}

	charge, err := s.provider.Charge(ctx, intent.LatestCharge.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving charge: %w", err)
	}
	if charge.BalanceTransaction == nil {
		s.audit.Warn(ctx, "No balance transaction found for charge", charge, nil)
		return nil
	}
	balanceTx, err := s.provider.BalanceTransaction(ctx, charge.BalanceTransaction.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving balance transaction: %w", err)
	}

	events, err := payment.EventLog()
	if err != nil {
		s.audit.Warn(ctx, "Saved payment events are not an array", intent, payment)
		return nil
	}
	events = append(events, models.PaymentEvent{
		Type: "payment_intent.succeeded",
		Name: "succeeded",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	upd := &models.PaymentUpdate{
		Status:        string(intent.Status),
		Events:        eventsJSON,
		PaymentMethod: &charge.PaymentMethod,
		FeeAmount:     &balanceTx.Fee,
		NetAmount:     &balanceTx.Net,
	}
	if charge.PaymentMethodDetails != nil {
		pmType := string(charge.PaymentMethodDetails.Type)
		upd.PaymentMethodType = &pmType
	}
	if intent.Shipping != nil {
		if shipping, err := json.Marshal(intent.Shipping); err == nil {
			upd.Shipping = shipping
		}
	}
	if err := s.store.UpdatePaymentOnEvent(ctx, payment.ID, upd); err != nil {
		s.audit.Error(ctx, "Error updating payment in webhook", intent, payment)
		return nil
	}

	transactions, err := s.store.GetTransactionsForPayment(ctx, payment.ID, models.DirectionUserToOrg)
	if err != nil {
		return err
	}

	var transaction *models.Transaction
	if len(transactions) == 1 {
		transaction = &transactions[0]
		if err := s.store.UpdateTransactionStatus(ctx, transaction.ID, models.TransactionStatusConfirmed); err != nil {
			return err
		}
	} else {
		s.audit.Warn(ctx, "Transaction for payment intent is not singular", intent, payment)
	}

	if transaction != nil {
		if err := s.createFeeTransaction(ctx, payment, transaction, balanceTx); err != nil {
			return err
		}

		if transaction.EventRegistration != nil {
			if err := s.store.UpdateRegistrationStatus(ctx, transaction.EventRegistration.ID,
				models.RegistrationStatusSuccessful, nil); err != nil {
				return err
			}
		}
		if transaction.Purchase != nil {
			if err := s.store.UpdatePurchaseStatus(ctx, transaction.Purchase.ID,
				models.PurchaseStatusPaid, nil); err != nil {
				s.audit.Warn(ctx, "Could not update the purchase", err.Error(), payment)
			}
		}
		if transaction.EventRegistration != nil && transaction.EventRegistration.TransferCode != nil {
			if err := s.transfers.Resolve(ctx, transaction.EventRegistration.TransferCode, payment, connectedAccountID); err != nil {
				return err
			}
		}
	}

	util.PaymentsSucceededTotal.Inc()
	s.publish(ctx, func() error {
		return s.publisher.PublishPaymentSucceeded(ctx, &models.PaymentSucceededEvent{
			BaseEvent:     newBaseEvent(models.EventTypePaymentSucceeded),
			PaymentID:     payment.ID,
			PaymentIntent: intent.ID,
			FeeAmount:     balanceTx.Fee,
			NetAmount:     balanceTx.Net,
		})
	})
	return nil
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.audit.Warn(ctx, "Malformed payment intent payload", event.Data.Raw, nil)
		return nil
	}

	payment, err := s.store.GetPaymentByPaymentIntent(ctx, intent.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}

	events, err := payment.EventLog()
	if err != nil {
		s.audit.Warn(ctx, "Saved payment events are not an array", event.Data.Raw, payment)
		return nil
	}
	events = append(events, models.PaymentEvent{
		Type: "payment_intent.payment_failed",
		Name: "failed",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	upd := &models.PaymentUpdate{
		Status: string(intent.Status),
		Events: eventsJSON,
	}
	if intent.Shipping != nil {
		if shipping, err := json.Marshal(intent.Shipping); err == nil {
			upd.Shipping = shipping
		}
	}
	if err := s.store.UpdatePaymentOnEvent(ctx, payment.ID, upd); err != nil {
		return err
	}

	s.publish(ctx, func() error {
		return s.publisher.PublishPaymentFailed(ctx, &models.PaymentFailedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
			PaymentID: payment.ID,
			Status:    string(intent.Status),
		})
	})
	return nil
}

func (s *WebhookService) handlePaymentCanceled(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var reported stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &reported); err != nil {
		s.audit.Warn(ctx, "Malformed payment intent payload", event.Data.Raw, nil)
		return nil
	}

	var payment *models.Payment
	var err error
	if id := reported.Metadata["paymentId"]; id != "" {
		payment, err = s.store.GetPaymentByID(ctx, id)
	} else {
		payment, err = s.store.GetPaymentByPaymentIntent(ctx, reported.ID)
	}
	if err != nil {
		return err
	}

	// This handler issues a scoped provider call, so a resolvable connect
	// account id is a hard requirement.
	if payment == nil || !s.hasConnectAccount(ctx, payment) {
		s.audit.Warn(ctx, "No account id found for incoming event", event.Data.Raw, nil)
		return ErrNoConnectAccount
	}

	intent, err := s.provider.PaymentIntent(ctx, reported.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusCanceled {
		s.audit.Warn(ctx, "Payment intent status is not canceled", intent, &reported)
		return nil
	}

	return s.cancelPayment(ctx, payment, "payment_intent", string(intent.Status), event.Data.Raw)
}

func (s *WebhookService) handleDisputeCreated(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		s.audit.Warn(ctx, "Malformed charge payload", event.Data.Raw, nil)
		return nil
	}

	if charge.PaymentIntent == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}
	payment, err := s.store.GetPaymentByPaymentIntent(ctx, charge.PaymentIntent.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}

	events, err := payment.EventLog()
	if err != nil {
		s.audit.Warn(ctx, "Saved payment events are not an array", event.Data.Raw, payment)
		return nil
	}
	events = append(events, models.PaymentEvent{
		Type: "charge.dispute.created",
		Name: "disputed",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	return s.store.UpdatePaymentOnEvent(ctx, payment.ID, &models.PaymentUpdate{
		Status: string(charge.Status),
		Events: eventsJSON,
	})
}

func (s *WebhookService) handleChargeRefunded(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	var reported stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &reported); err != nil {
		s.audit.Warn(ctx, "Malformed charge payload", event.Data.Raw, nil)
		return nil
	}

	if reported.PaymentIntent == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}
	payment, err := s.store.GetPaymentByPaymentIntent(ctx, reported.PaymentIntent.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", event.Data.Raw, nil)
		return nil
	}

	transactions, err := s.store.GetTransactionsForPayment(ctx, payment.ID, "")
	if err != nil {
		return err
	}
	if len(transactions) == 0 || transactions[0].Tenant == nil ||
		transactions[0].Tenant.StripeConnectAccountID == nil ||
		*transactions[0].Tenant.StripeConnectAccountID == "" {
		s.audit.Warn(ctx, "No account id found for incoming event", event.Data.Raw, nil)
		return ErrNoConnectAccount
	}

	charge, err := s.provider.Charge(ctx, reported.ID, connectedAccountID)
	if err != nil {
		return fmt.Errorf("retrieving charge: %w", err)
	}
	if charge.BalanceTransaction != nil {
		balanceTx, err := s.provider.BalanceTransaction(ctx, charge.BalanceTransaction.ID, connectedAccountID)
		if err != nil {
			return fmt.Errorf("retrieving balance transaction: %w", err)
		}
		s.logger.Debug("Refund balance transaction",
			zap.String("payment_id", payment.ID),
			zap.Int64("fee", balanceTx.Fee),
			zap.Int64("net", balanceTx.Net))
	}

	events, err := payment.EventLog()
	if err != nil {
		s.audit.Warn(ctx, "Saved payment events are not an array", charge, payment)
		return nil
	}
	events = append(events, models.PaymentEvent{
		Type: "charge.refunded",
		Name: "refunded",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	refunded := charge.AmountRefunded
	if err := s.store.UpdatePaymentOnEvent(ctx, payment.ID, &models.PaymentUpdate{
		Status:            "refunded",
		Events:            eventsJSON,
		RefundedIncrement: &refunded,
	}); err != nil {
		return err
	}

	first := transactions[0]
	if first.EventRegistrationID != nil && first.TenantID != nil && first.UserID != nil {
		reversal := &models.Transaction{
			ID:                  uuid.New().String(),
			Subject:             fmt.Sprintf("Refund for %s", *first.EventRegistrationID),
			Type:                models.TransactionTypeStripe,
			Direction:           models.DirectionOrgToUser,
			Status:              models.TransactionStatusConfirmed,
			Amount:              float64(charge.AmountRefunded) / 100,
			UserID:              first.UserID,
			CreatedByID:         first.UserID,
			TenantID:            first.TenantID,
			EventRegistrationID: first.EventRegistrationID,
			PaymentID:           &payment.ID,
		}
		if err := s.store.CreateTransaction(ctx, reversal); err != nil {
			return err
		}
	} else {
		s.audit.Warn(ctx, "No connected transaction for payment", payment, nil)
	}

	util.RefundsRecordedTotal.Inc()
	s.publish(ctx, func() error {
		return s.publisher.PublishPaymentRefunded(ctx, &models.PaymentRefundedEvent{
			BaseEvent:      newBaseEvent(models.EventTypePaymentRefunded),
			PaymentID:      payment.ID,
			AmountRefunded: charge.AmountRefunded,
		})
	})
	return nil
}

// cancelPayment is the shared effect behind expired checkout sessions and
// canceled payment intents.
func (s *WebhookService) cancelPayment(ctx context.Context, payment *models.Payment, objectType, status string, data json.RawMessage) error {
	if payment == nil {
		s.audit.Warn(ctx, "No database payment found for incoming event", data, nil)
		return nil
	}

	// A malformed stored log starts over rather than blocking cancellation.
	events, err := payment.EventLog()
	if err != nil {
		events = []models.PaymentEvent{}
	}
	events = append(events, models.PaymentEvent{
		Type: objectType,
		Name: "canceled",
		Date: time.Now().UnixMilli(),
	})
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePaymentOnEvent(ctx, payment.ID, &models.PaymentUpdate{
		Status: status,
		Events: eventsJSON,
	}); err != nil {
		return err
	}

	transactions, err := s.store.GetTransactionsForPayment(ctx, payment.ID, models.DirectionUserToOrg)
	if err != nil {
		return err
	}

	var transaction *models.Transaction
	if len(transactions) == 1 {
		transaction = &transactions[0]
		if err := s.store.UpdateTransactionStatus(ctx, transaction.ID, models.TransactionStatusCancelled); err != nil {
			return err
		}
	} else {
		s.audit.Warn(ctx, "Transaction for payment intent is not singular", data, payment)
	}
	if transaction == nil {
		s.audit.Warn(ctx, "Transaction for payment intent wasn't found", data, payment)
		return nil
	}

	reason := "Payment intent timed out"
	if transaction.EventRegistration != nil &&
		transaction.EventRegistration.Status != models.RegistrationStatusCancelled {
		if err := s.store.UpdateRegistrationStatus(ctx, transaction.EventRegistration.ID,
			models.RegistrationStatusCancelled, &reason); err != nil {
			return err
		}
	}
	if transaction.Purchase != nil {
		if err := s.store.UpdatePurchaseStatus(ctx, transaction.Purchase.ID,
			models.PurchaseStatusCancelled, &reason); err != nil {
			return err
		}
	}
	if transaction.EventRegistration != nil && transaction.EventRegistration.TransferCode != nil {
		if err := s.transfers.Revert(ctx, transaction.EventRegistration.TransferCode); err != nil {
			return err
		}
	}

	util.PaymentsCanceledTotal.Inc()
	s.publish(ctx, func() error {
		return s.publisher.PublishPaymentCanceled(ctx, &models.PaymentCanceledEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentCanceled),
			PaymentID: payment.ID,
			Status:    status,
		})
	})
	return nil
}

func (s *WebhookService) createFeeTransaction(ctx context.Context, payment *models.Payment, transaction *models.Transaction, balanceTx *stripe.BalanceTransaction) error {
	amount := float64(balanceTx.Fee) / 100

	existing, err := s.store.FindFeeTransaction(ctx, payment.ID, amount)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	fee := &models.Transaction{
		ID:                  uuid.New().String(),
		Subject:             fmt.Sprintf("Stripe fees for %s", transaction.ID),
		Type:                models.TransactionTypeStripe,
		Direction:           models.DirectionOrgToExternal,
		Status:              models.TransactionStatusConfirmed,
		Amount:              amount,
		UserID:              transaction.UserID,
		CreatedByID:         transaction.UserID,
		TenantID:            transaction.TenantID,
		EventRegistrationID: transaction.EventRegistrationID,
		PurchaseID:          transaction.PurchaseID,
		PaymentID:           &payment.ID,
	}
	if err := s.store.CreateTransaction(ctx, fee); err != nil {
		return err
	}
	util.FeeTransactionsCreatedTotal.Inc()
	return nil
}

// hasConnectAccount reports whether any transaction of the payment links to
// a tenant with a provider connect account id.
func (s *WebhookService) hasConnectAccount(ctx context.Context, payment *models.Payment) bool {
	transactions, err := s.store.GetTransactionsForPayment(ctx, payment.ID, "")
	if err != nil || len(transactions) == 0 {
		return false
	}
	tenant := transactions[0].Tenant
	return tenant != nil && tenant.StripeConnectAccountID != nil && *tenant.StripeConnectAccountID != ""
}

func (s *WebhookService) publish(ctx context.Context, fn func() error) {
	if s.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Error("Failed to publish outcome event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
