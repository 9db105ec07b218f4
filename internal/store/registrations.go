package store

import (
	"context"
	"database/sql"

	"registration-service/internal/models"
)

// GetRegistrationByID retrieves a registration, or (nil, nil) when missing
func (s *Store) GetRegistrationByID(ctx context.Context, id string) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	err := s.db.GetContext(ctx, &reg, "SELECT * FROM event_registrations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// UpdateRegistrationStatus sets a registration's status and cancellation
// reason. A nil reason clears the stored reason.
func (s *Store) UpdateRegistrationStatus(ctx context.Context, registrationID, status string, reason *string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE event_registrations SET status = $1, cancellation_reason = $2 WHERE id = $3",
		status, reason, registrationID)
	return err
}

// GetRegistrationPaymentContext resolves the inbound transaction, payment and
// tenant connect account behind a registration. Used by the transfer flow to
// refund a reinstated registration's original payment.
func (s *Store) GetRegistrationPaymentContext(ctx context.Context, registrationID string) (*models.RegistrationPaymentContext, error) {
	var tx models.Transaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM transactions WHERE event_registration_id = $1 AND direction = $2 ORDER BY created_at LIMIT 1",
		registrationID, models.DirectionUserToOrg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rctx := &models.RegistrationPaymentContext{Transaction: &tx}

	if tx.PaymentID != nil {
		payment, err := s.GetPaymentByID(ctx, *tx.PaymentID)
		if err != nil {
			return nil, err
		}
		rctx.Payment = payment
	}

	if tx.TenantID != nil {
		var tenant models.Tenant
		err := s.db.GetContext(ctx, &tenant,
			"SELECT id, name, stripe_connect_account_id FROM tenants WHERE id = $1", *tx.TenantID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			rctx.ConnectAccountID = tenant.StripeConnectAccountID
		}
	}

	return rctx, nil
}

// UpdateTransferCodeStatus updates a transfer code's status
func (s *Store) UpdateTransferCodeStatus(ctx context.Context, codeID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE registration_transfer_codes SET status = $1 WHERE id = $2", status, codeID)
	return err
}

// ResetTransferCode puts a transfer code back to pending with no created
// registration, so the slot move can be retried with a fresh payment.
func (s *Store) ResetTransferCode(ctx context.Context, codeID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE registration_transfer_codes SET status = $1, registration_created_id = NULL WHERE id = $2",
		models.RegistrationStatusPending, codeID)
	return err
}
