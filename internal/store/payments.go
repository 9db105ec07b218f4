package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"registration-service/internal/models"
)

// Payment lookups return (nil, nil) when no row matches so callers can treat
// a miss as an anomaly to audit instead of an error to propagate.

// GetPaymentByID retrieves a payment by its internal id
func (s *Store) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByPaymentIntent retrieves a payment by its provider intent reference
func (s *Store) GetPaymentByPaymentIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE payment_intent = $1", intentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByCheckoutSession retrieves a payment by its checkout session reference
func (s *Store) GetPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE checkout_session = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// AttachPaymentIntent backfills the provider intent reference onto a payment.
// Safe to call repeatedly with the same value.
func (s *Store) AttachPaymentIntent(ctx context.Context, paymentID, intentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET payment_intent = $1, updated_at = NOW() WHERE id = $2",
		intentID, paymentID)
	return err
}

// UpdatePaymentOnEvent applies a webhook-driven update to a payment. The
// refunded amount is incremented atomically, never overwritten.
func (s *Store) UpdatePaymentOnEvent(ctx context.Context, paymentID string, upd *models.PaymentUpdate) error {
	sets := []string{"status = $1", "events = $2", "updated_at = NOW()"}
	args := []interface{}{upd.Status, upd.Events}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Shipping != nil {
		add("shipping", upd.Shipping)
	}
	if upd.PaymentMethod != nil {
		add("payment_method", *upd.PaymentMethod)
	}
	if upd.PaymentMethodType != nil {
		add("payment_method_type", *upd.PaymentMethodType)
	}
	if upd.FeeAmount != nil {
		add("fee_amount", *upd.FeeAmount)
	}
	if upd.NetAmount != nil {
		add("net_amount", *upd.NetAmount)
	}
	if upd.RefundedIncrement != nil {
		args = append(args, *upd.RefundedIncrement)
		sets = append(sets, fmt.Sprintf("refunded_amount = refunded_amount + $%d", len(args)))
	}

	args = append(args, paymentID)
	query := fmt.Sprintf("UPDATE payments SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// GetTransactionsForPayment retrieves the transactions linked to a payment,
// optionally filtered by direction, with registration (and its transfer
// code), purchase and tenant eager-loaded.
func (s *Store) GetTransactionsForPayment(ctx context.Context, paymentID, direction string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	var err error
	if direction == "" {
		err = s.db.SelectContext(ctx, &transactions,
			"SELECT * FROM transactions WHERE payment_id = $1 ORDER BY created_at", paymentID)
	} else {
		err = s.db.SelectContext(ctx, &transactions,
			"SELECT * FROM transactions WHERE payment_id = $1 AND direction = $2 ORDER BY created_at",
			paymentID, direction)
	}
	if err != nil {
		return nil, err
	}

	for i := range transactions {
		if err := s.loadTransactionRelations(ctx, &transactions[i]); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

func (s *Store) loadTransactionRelations(ctx context.Context, tx *models.Transaction) error {
	if tx.EventRegistrationID != nil {
		var reg models.EventRegistration
		err := s.db.GetContext(ctx, &reg,
			"SELECT * FROM event_registrations WHERE id = $1", *tx.EventRegistrationID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil {
			if reg.TransferCodeID != nil {
				var code models.RegistrationTransferCode
				err := s.db.GetContext(ctx, &code,
					"SELECT * FROM registration_transfer_codes WHERE id = $1", *reg.TransferCodeID)
				if err != nil && err != sql.ErrNoRows {
					return err
				}
				if err == nil {
					reg.TransferCode = &code
				}
			}
			tx.EventRegistration = &reg
		}
	}

	if tx.PurchaseID != nil {
		var purchase models.Purchase
		err := s.db.GetContext(ctx, &purchase,
			"SELECT * FROM purchases WHERE id = $1", *tx.PurchaseID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil {
			tx.Purchase = &purchase
		}
	}

	if tx.TenantID != nil {
		var tenant models.Tenant
		err := s.db.GetContext(ctx, &tenant,
			"SELECT id, name, stripe_connect_account_id FROM tenants WHERE id = $1", *tx.TenantID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil {
			tx.Tenant = &tenant
		}
	}

	return nil
}

// UpdateTransactionStatus updates a transaction's status
func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = $1 WHERE id = $2", status, transactionID)
	return err
}

// CreateTransaction creates a new transaction
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, subject, type, direction, status, amount, user_id, created_by_id,
			 tenant_id, event_registration_id, purchase_id, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	return s.db.GetContext(ctx, &tx.CreatedAt, query,
		tx.ID, tx.Subject, tx.Type, tx.Direction, tx.Status, tx.Amount,
		tx.UserID, tx.CreatedByID, tx.TenantID, tx.EventRegistrationID,
		tx.PurchaseID, tx.PaymentID)
}

// FindFeeTransaction looks for an existing outbound fee transaction for a
// payment and amount. Used to keep fee creation idempotent under redelivery.
func (s *Store) FindFeeTransaction(ctx context.Context, paymentID string, amount float64) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM transactions WHERE payment_id = $1 AND direction = $2 AND amount = $3 LIMIT 1",
		paymentID, models.DirectionOrgToExternal, amount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdatePurchaseStatus updates a purchase's status and cancellation reason
func (s *Store) UpdatePurchaseStatus(ctx context.Context, purchaseID, status string, reason *string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE purchases SET status = $1, cancellation_reason = $2 WHERE id = $3",
		status, reason, purchaseID)
	return err
}
