package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway calls Stripe through a client owned by this value.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway builds a client for secretKey. baseURL overrides the API
// endpoint and is empty outside tests. The client's own network retries are
// disabled so every call is a single attempt.
func NewStripeGateway(secretKey, baseURL string, logger *zap.Logger) *StripeGateway {
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	if logger != nil {
		cfg.LeveledLogger = logger.Sugar()
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &StripeGateway{sc: client.New(secretKey, backends)}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, description, idempotencyKey string) (string, error) {
	params := &stripe.CustomerParams{
		Description: stripe.String(description),
	}
	params.Context = ctx
	if key := stepKey(idempotencyKey, "customer"); key != "" {
		params.SetIdempotencyKey(key)
	}

	customer, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", describe(err))
	}
	return customer.ID, nil
}

func (g *StripeGateway) AttachCard(ctx context.Context, customerID string, card Card, idempotencyKey string) (string, error) {
	params := &stripe.CardParams{
		Customer: stripe.String(customerID),
		Number:   stripe.String(card.Number),
		ExpMonth: stripe.String(card.ExpMonth),
		ExpYear:  stripe.String(card.ExpYear),
	}
	params.Context = ctx
	if key := stepKey(idempotencyKey, "card"); key != "" {
		params.SetIdempotencyKey(key)
	}

	source, err := g.sc.Cards.New(params)
	if err != nil {
		return "", fmt.Errorf("attach card: %w", describe(err))
	}
	return source.ID, nil
}

func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Customer:    stripe.String(req.CustomerID),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if err := params.SetSource(req.SourceID); err != nil {
		return nil, fmt.Errorf("set charge source: %w", err)
	}
	if key := stepKey(req.IdempotencyKey, "charge"); key != "" {
		params.SetIdempotencyKey(key)
	}

	ch, err := g.sc.Charges.New(params)
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", describe(err))
	}
	return &Charge{ID: ch.ID, Paid: ch.Paid}, nil
}

// describe keeps Stripe's decline code and message readable in the wrapped error.
func describe(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code != "" {
			return fmt.Errorf("%s: %s: %w", stripeErr.Code, stripeErr.Msg, err)
		}
		return fmt.Errorf("%s: %w", stripeErr.Msg, err)
	}
	return err
}
