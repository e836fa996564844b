// Package gateway talks to the card payment provider.
//
// A purchase runs three calls in order: CreateCustomer, AttachCard, CreateCharge.
// None of them are retried here. Every call carries an idempotency key so a
// caller that does retry after a timeout cannot create a second charge.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/config"
)

// Card holds the submitted card details.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
}

// ChargeRequest describes a single charge against an attached card.
type ChargeRequest struct {
	CustomerID     string
	SourceID       string
	Amount         int64 // Minor currency units
	Currency       string
	Description    string
	IdempotencyKey string
}

// Charge is the provider's answer to a charge request.
type Charge struct {
	ID   string
	Paid bool
}

// Gateway is the payment provider contract used by the purchase flow.
type Gateway interface {
	CreateCustomer(ctx context.Context, description, idempotencyKey string) (customerID string, err error)
	AttachCard(ctx context.Context, customerID string, card Card, idempotencyKey string) (sourceID string, err error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// New builds the configured gateway wrapped in a concurrency limiter.
func New(cfg config.Payment, logger *zap.Logger) (Gateway, error) {
	var gw Gateway
	switch cfg.Provider {
	case config.GatewayProviderStripe, "":
		if cfg.StripeSecretKey == "" {
			return nil, errors.New("STRIPE_SECRET_KEY is required for the stripe gateway")
		}
		gw = NewStripeGateway(cfg.StripeSecretKey, "", logger)
	case config.GatewayProviderFake:
		if logger != nil {
			logger.Warn("using fake payment gateway, charges are simulated")
		}
		gw = NewFakeGateway()
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
	}
	return NewLimited(gw, cfg.MaxInFlight), nil
}

// stepKey derives a distinct key per call from the attempt key. The provider
// rejects one key reused with different parameters.
func stepKey(attemptKey, step string) string {
	if attemptKey == "" {
		return ""
	}
	return attemptKey + ":" + step
}
