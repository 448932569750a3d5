package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Charger captures fares. Fare capture shares the notification policy:
// best-effort, never part of the booking's correctness contract.
type Charger interface {
	Charge(ctx context.Context, amountCents int64, currency, customerID string) (string, error)
}

// StripeClient is a thin wrapper around stripe-go for fare charges when a
// booking completes.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// Charge creates an automatically-captured PaymentIntent for the fare and
// returns its ID.
func (s *StripeClient) Charge(ctx context.Context, amountCents int64, currency, customerID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}
