package gateway

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of gateway calls in flight. Callers over the
// limit wait until a slot frees up or their context ends.
type Limited struct {
	next Gateway
	sem  *semaphore.Weighted
}

func NewLimited(next Gateway, maxInFlight int) *Limited {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(maxInFlight))}
}

func (l *Limited) CreateCustomer(ctx context.Context, description, idempotencyKey string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.next.CreateCustomer(ctx, description, idempotencyKey)
}

func (l *Limited) AttachCard(ctx context.Context, customerID string, card Card, idempotencyKey string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.next.AttachCard(ctx, customerID, card, idempotencyKey)
}

func (l *Limited) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.CreateCharge(ctx, req)
}

func (l *Limited) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for gateway slot: %w", err)
	}
	return nil
}
