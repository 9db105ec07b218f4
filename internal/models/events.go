package models

import "time"

// Event types published after reconciliation
const (
	EventTypePaymentSucceeded  = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed     = "PAYMENT_FAILED"
	EventTypePaymentCanceled   = "PAYMENT_CANCELED"
	EventTypePaymentRefunded   = "PAYMENT_REFUNDED"
	EventTypeRegistrationMoved = "REGISTRATION_MOVED"
)

// BaseEvent contains common fields for all published events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentSucceededEvent published when a payment is reconciled as succeeded
type PaymentSucceededEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	PaymentIntent string `json:"payment_intent"`
	FeeAmount     int64  `json:"fee_amount"`
	NetAmount     int64  `json:"net_amount"`
}

// PaymentFailedEvent published when the provider reports a failed payment
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentCanceledEvent published when a payment is canceled or its checkout
// session expires
type PaymentCanceledEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentRefundedEvent published when a refund is recorded
type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID      string `json:"payment_id"`
	AmountRefunded int64  `json:"amount_refunded"`
}

// RegistrationMovedEvent published when a registration transfer is finalized
type RegistrationMovedEvent struct {
	BaseEvent
	TransferCodeID        string  `json:"transfer_code_id"`
	RemovedRegistrationID *string `json:"removed_registration_id,omitempty"`
	CreatedRegistrationID *string `json:"created_registration_id,omitempty"`
}
