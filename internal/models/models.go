package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Registration statuses
const (
	RegistrationStatusPending    = "PENDING"
	RegistrationStatusSuccessful = "SUCCESSFUL"
	RegistrationStatusCancelled  = "CANCELLED"
	RegistrationStatusRejected   = "REJECTED"
	RegistrationStatusAccepted   = "ACCEPTED"
)

// Transaction statuses
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusConfirmed = "CONFIRMED"
	TransactionStatusCancelled = "CANCELLED"
)

// Transaction directions
const (
	DirectionUserToOrg     = "USER_TO_ORG"
	DirectionOrgToUser     = "ORG_TO_USER"
	DirectionOrgToExternal = "ORG_TO_EXTERNAL"
)

// Transaction types
const (
	TransactionTypeStripe = "STRIPE"
)

// Purchase statuses
const (
	PurchaseStatusPending   = "PENDING"
	PurchaseStatusPaid      = "PAID"
	PurchaseStatusCancelled = "CANCELLED"
)

// Audit severities
const (
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// PaymentEvent is one entry in a payment's append-only event log.
type PaymentEvent struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Date int64  `json:"date"`
}

// Payment is a provider payment attempt tracked locally.
type Payment struct {
	ID                string    `db:"id" json:"id"`
	PaymentIntent     *string   `db:"payment_intent" json:"payment_intent,omitempty"`
	CheckoutSession   string    `db:"checkout_session" json:"checkout_session"`
	Status            string    `db:"status" json:"status"`
	Events            []byte    `db:"events" json:"events"`
	Shipping          []byte    `db:"shipping" json:"shipping,omitempty"`
	PaymentMethod     *string   `db:"payment_method" json:"payment_method,omitempty"`
	PaymentMethodType *string   `db:"payment_method_type" json:"payment_method_type,omitempty"`
	FeeAmount         *int64    `db:"fee_amount" json:"fee_amount,omitempty"`
	NetAmount         *int64    `db:"net_amount" json:"net_amount,omitempty"`
	RefundedAmount    int64     `db:"refunded_amount" json:"refunded_amount"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// EventLog decodes the stored event log. A stored value that is not a JSON
// array of PaymentEvent is a data-shape anomaly, reported as an error.
func (p *Payment) EventLog() ([]PaymentEvent, error) {
	if len(p.Events) == 0 {
		return []PaymentEvent{}, nil
	}
	var events []PaymentEvent
	if err := json.Unmarshal(p.Events, &events); err != nil {
		return nil, fmt.Errorf("saved payment events are not an array: %w", err)
	}
	return events, nil
}

// PaymentUpdate carries the fields a webhook handler writes back to a payment.
// Nil pointer fields are left untouched. RefundedIncrement is applied as an
// atomic increment, never as an absolute write.
type PaymentUpdate struct {
	Status            string
	Events            []byte
	Shipping          []byte
	PaymentMethod     *string
	PaymentMethodType *string
	FeeAmount         *int64
	NetAmount         *int64
	RefundedIncrement *int64
}

// Transaction is one ledger entry for money movement.
type Transaction struct {
	ID                  string    `db:"id" json:"id"`
	Subject             string    `db:"subject" json:"subject"`
	Type                string    `db:"type" json:"type"`
	Direction           string    `db:"direction" json:"direction"`
	Status              string    `db:"status" json:"status"`
	Amount              float64   `db:"amount" json:"amount"`
	UserID              *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedByID         *string   `db:"created_by_id" json:"created_by_id,omitempty"`
	TenantID            *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	EventRegistrationID *string   `db:"event_registration_id" json:"event_registration_id,omitempty"`
	PurchaseID          *string   `db:"purchase_id" json:"purchase_id,omitempty"`
	PaymentID           *string   `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`

	// Eager-loaded relations, populated by the store on request.
	EventRegistration *EventRegistration `db:"-" json:"event_registration,omitempty"`
	Purchase          *Purchase          `db:"-" json:"purchase,omitempty"`
	Tenant            *Tenant            `db:"-" json:"tenant,omitempty"`
}

// EventRegistration is a user's registration for an event.
type EventRegistration struct {
	ID                 string    `db:"id" json:"id"`
	EventID            string    `db:"event_id" json:"event_id"`
	UserID             string    `db:"user_id" json:"user_id"`
	Status             string    `db:"status" json:"status"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	TransferCodeID     *string   `db:"transfer_code_id" json:"transfer_code_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`

	TransferCode *RegistrationTransferCode `db:"-" json:"transfer_code,omitempty"`
}

// RegistrationTransferCode represents a pending move of a registration slot
// from one registrant to another, gated on a new payment succeeding.
type RegistrationTransferCode struct {
	ID                     string    `db:"id" json:"id"`
	Status                 string    `db:"status" json:"status"`
	RegistrationToRemoveID *string   `db:"registration_to_remove_id" json:"registration_to_remove_id,omitempty"`
	RegistrationCreatedID  *string   `db:"registration_created_id" json:"registration_created_id,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
}

// Purchase is a non-registration purchase tied to a payment.
type Purchase struct {
	ID                 string    `db:"id" json:"id"`
	Status             string    `db:"status" json:"status"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	TransactionID      *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Tenant is a payee organization with its own provider sub-account.
type Tenant struct {
	ID                     string  `db:"id" json:"id"`
	Name                   string  `db:"name" json:"name"`
	StripeConnectAccountID *string `db:"stripe_connect_account_id" json:"stripe_connect_account_id,omitempty"`
}

// ActivityLog is one append-only anomaly record.
type ActivityLog struct {
	ID        int64     `db:"id" json:"id"`
	Severity  string    `db:"severity" json:"severity"`
	Category  string    `db:"category" json:"category"`
	Message   string    `db:"message" json:"message"`
	Data      []byte    `db:"data" json:"data,omitempty"`
	OldData   []byte    `db:"old_data" json:"old_data,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RegistrationPaymentContext bundles the payment linkage of a registration,
// used when a reinstated registration needs to be refunded.
type RegistrationPaymentContext struct {
	Transaction      *Transaction
	Payment          *Payment
	ConnectAccountID *string
}

// RegistrationRow is the denormalized row the admin status board reads.
type RegistrationRow struct {
	ID                 string  `db:"id" json:"id"`
	Status             string  `db:"status" json:"status"`
	PaymentStatus      *string `db:"payment_status" json:"payment_status,omitempty"`
	UserID             string  `db:"user_id" json:"user_id"`
	FirstName          string  `db:"first_name" json:"first_name"`
	LastName           string  `db:"last_name" json:"last_name"`
	Email              string  `db:"email" json:"email"`
	CountryCode        *string `db:"country_code" json:"country_code,omitempty"`
	GroupID            *string `db:"group_id" json:"group_id,omitempty"`
	GroupName          *string `db:"group_name" json:"group_name,omitempty"`
	CancellationReason *string `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

// Group is an event group shown on the status board.
type Group struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Country is the slice of restcountries metadata the status board uses.
type Country struct {
	Name       string `json:"name"`
	Alpha2Code string `json:"alpha2Code"`
	Flags      Flags  `json:"flags"`
}

type Flags struct {
	SVG string `json:"svg"`
	PNG string `json:"png"`
}
