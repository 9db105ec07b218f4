package stripeclient

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Channel identifies which inbound webhook channel an event arrived on.
// Each channel is verified against its own signing secret.
type Channel int

const (
	ChannelDirect Channel = iota
	ChannelConnect
)

// Client wraps the Stripe API for the calls the reconciliation handlers
// need. All provider state (API key, signing secrets) is injected here;
// nothing is process-global.
type Client struct {
	api           *client.API
	directSecret  string
	connectSecret string
}

// NewClient creates a new Stripe client
func NewClient(apiKey, webhookSecret, connectWebhookSecret string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)

	return &Client{
		api:           api,
		directSecret:  webhookSecret,
		connectSecret: connectWebhookSecret,
	}
}

// VerifyEvent authenticates a raw webhook payload against the signing secret
// for the given channel and returns the parsed event. A verification failure
// is terminal for the request; the payload must not be processed.
func (c *Client) VerifyEvent(payload []byte, sigHeader string, channel Channel) (*stripe.Event, error) {
	secret := c.directSecret
	if channel == ChannelConnect {
		secret = c.connectSecret
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// PaymentIntent retrieves a payment intent, optionally scoped to a connected
// account
func (c *Client) PaymentIntent(ctx context.Context, id, connectedAccountID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	if connectedAccountID != "" {
		params.SetStripeAccount(connectedAccountID)
	}
	return c.api.PaymentIntents.Get(id, params)
}

// Charge retrieves a charge, optionally scoped to a connected account
func (c *Client) Charge(ctx context.Context, id, connectedAccountID string) (*stripe.Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	if connectedAccountID != "" {
		params.SetStripeAccount(connectedAccountID)
	}
	return c.api.Charges.Get(id, params)
}

// BalanceTransaction retrieves a balance transaction, optionally scoped to a
// connected account
func (c *Client) BalanceTransaction(ctx context.Context, id, connectedAccountID string) (*stripe.BalanceTransaction, error) {
	params := &stripe.BalanceTransactionParams{}
	params.Context = ctx
	if connectedAccountID != "" {
		params.SetStripeAccount(connectedAccountID)
	}
	return c.api.BalanceTransactions.Get(id, params)
}

// CreateRefund refunds the full amount of a payment intent, optionally
// scoped to a connected account
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID, connectedAccountID string) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if connectedAccountID != "" {
		params.SetStripeAccount(connectedAccountID)
	}
	return c.api.Refunds.New(params)
}
