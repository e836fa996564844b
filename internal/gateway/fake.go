package gateway

import (
	"context"
	"fmt"
	"sync"
)

// DeclinedCardNumber is reported unpaid by FakeGateway.
const DeclinedCardNumber = "4000000000000002"

// FakeGateway is an in-process gateway for local runs and tests.
// Cards listed in Decline produce unpaid charges; FailOn injects errors per step.
type FakeGateway struct {
	mu      sync.Mutex
	Decline map[string]bool
	FailOn  map[string]error // keyed by "customer", "card" or "charge"

	seq     int
	cards   map[string]string // source ID -> card number
	Charges []ChargeRequest
	Calls   []string
	Keys    []string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Decline: map[string]bool{DeclinedCardNumber: true},
		FailOn:  map[string]error{},
		cards:   map[string]string{},
	}
}

func (f *FakeGateway) CreateCustomer(ctx context.Context, description, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx, "customer", idempotencyKey); err != nil {
		return "", err
	}
	f.seq++
	return fmt.Sprintf("cus_fake_%d", f.seq), nil
}

func (f *FakeGateway) AttachCard(ctx context.Context, customerID string, card Card, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx, "card", idempotencyKey); err != nil {
		return "", err
	}
	f.seq++
	id := fmt.Sprintf("card_fake_%d", f.seq)
	f.cards[id] = card.Number
	return id, nil
}

func (f *FakeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx, "charge", req.IdempotencyKey); err != nil {
		return nil, err
	}
	f.seq++
	f.Charges = append(f.Charges, req)
	return &Charge{
		ID:   fmt.Sprintf("ch_fake_%d", f.seq),
		Paid: !f.Decline[f.cards[req.SourceID]],
	}, nil
}

// CallCount returns how many gateway calls were made.
func (f *FakeGateway) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeGateway) record(ctx context.Context, step, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Calls = append(f.Calls, step)
	f.Keys = append(f.Keys, key)
	if err := f.FailOn[step]; err != nil {
		return err
	}
	return nil
}
