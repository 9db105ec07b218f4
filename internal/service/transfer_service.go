package service

import (
	"context"

	"registration-service/internal/models"
	"registration-service/internal/util"
)

// TransferService reconciles registration moves that piggyback on the
// payment lifecycle: on payment success the slot swap is finalized, on
// cancellation it is rolled back. Both effects are idempotent against each
// registration's current status; the sequence is not wrapped in one
// transaction, so a crash mid-swap leaves state recoverable via the
// activity log.
type TransferService struct {
	store     Store
	provider  Provider
	publisher Publisher
	audit     *AuditLogger
}

// NewTransferService creates a new transfer-code resolver
func NewTransferService(store Store, provider Provider, publisher Publisher, audit *AuditLogger) *TransferService {
	return &TransferService{
		store:     store,
		provider:  provider,
		publisher: publisher,
		audit:     audit,
	}
}

// Resolve finalizes a transfer after the gating payment succeeded: the
// vacated registration is cancelled and its original payment refunded, the
// newly created registration is confirmed, and the code itself is marked
// successful.
func (t *TransferService) Resolve(ctx context.Context, code *models.RegistrationTransferCode, payment *models.Payment, connectedAccountID string) error {
	if code.RegistrationToRemoveID != nil {
		if err := t.cancelAndRefundRemoved(ctx, *code.RegistrationToRemoveID, payment, connectedAccountID); err != nil {
			return err
		}
	}

	if code.RegistrationCreatedID != nil {
		if err := t.store.UpdateRegistrationStatus(ctx, *code.RegistrationCreatedID,
			models.RegistrationStatusSuccessful, nil); err != nil {
			return err
		}
	}

	if err := t.store.UpdateTransferCodeStatus(ctx, code.ID, models.RegistrationStatusSuccessful); err != nil {
		return err
	}

	util.RegistrationMovesResolvedTotal.Inc()
	if t.publisher != nil {
		_ = t.publisher.PublishRegistrationMoved(ctx, &models.RegistrationMovedEvent{
			BaseEvent:             newBaseEvent(models.EventTypeRegistrationMoved),
			TransferCodeID:        code.ID,
			RemovedRegistrationID: code.RegistrationToRemoveID,
			CreatedRegistrationID: code.RegistrationCreatedID,
		})
	}
	return nil
}

func (t *TransferService) cancelAndRefundRemoved(ctx context.Context, registrationID string, payment *models.Payment, connectedAccountID string) error {
	registration, err := t.store.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return err
	}
	if registration == nil || registration.Status == models.RegistrationStatusCancelled {
		return nil
	}

	reason := "Event was moved to another person"
	if err := t.store.UpdateRegistrationStatus(ctx, registration.ID,
		models.RegistrationStatusCancelled, &reason); err != nil {
		return err
	}

	rctx, err := t.store.GetRegistrationPaymentContext(ctx, registration.ID)
	if err != nil {
		return err
	}
	if rctx == nil || rctx.Payment == nil {
		return nil
	}

	if rctx.Payment.PaymentIntent == nil || *rctx.Payment.PaymentIntent == "" {
		t.audit.Error(ctx, "Transaction to refund is missing payment intent", registration, payment)
		return nil
	}
	if rctx.ConnectAccountID == nil || *rctx.ConnectAccountID == "" {
		t.audit.Error(ctx, "Refund failed during registration move",
			"tenant does not have a stripe connect account id", registration)
		return nil
	}
	if _, err := t.provider.CreateRefund(ctx, *rctx.Payment.PaymentIntent, connectedAccountID); err != nil {
		t.audit.Error(ctx, "Refund failed during registration move", err.Error(), registration)
	}
	return nil
}

// Revert rolls a transfer back after the gating payment failed or timed
// out: the vacated registration is reinstated, the new one cancelled, and
// the code reset to pending so the move can be retried.
func (t *TransferService) Revert(ctx context.Context, code *models.RegistrationTransferCode) error {
	if code.RegistrationToRemoveID != nil {
		registration, err := t.store.GetRegistrationByID(ctx, *code.RegistrationToRemoveID)
		if err != nil {
			return err
		}
		if registration != nil && registration.Status != models.RegistrationStatusSuccessful {
			if err := t.store.UpdateRegistrationStatus(ctx, registration.ID,
				models.RegistrationStatusSuccessful, nil); err != nil {
				return err
			}
		}
	}

	if code.RegistrationCreatedID != nil {
		registration, err := t.store.GetRegistrationByID(ctx, *code.RegistrationCreatedID)
		if err != nil {
			return err
		}
		if registration != nil && registration.Status != models.RegistrationStatusCancelled {
			reason := "Payment for move failed"
			if err := t.store.UpdateRegistrationStatus(ctx, registration.ID,
				models.RegistrationStatusCancelled, &reason); err != nil {
				return err
			}
		}
	}

	if err := t.store.ResetTransferCode(ctx, code.ID); err != nil {
		return err
	}

	util.RegistrationMovesRevertedTotal.Inc()
	return nil
}
