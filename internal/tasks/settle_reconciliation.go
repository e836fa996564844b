package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/reconcile"
)

// Settler writes a reconciled charge into the ledger.
type Settler interface {
	Settle(ctx context.Context, reconciliationID uint) (reconcile.Outcome, error)
}

// SettleReconciliationTask retries the ledger write for a paid charge.
type SettleReconciliationTask struct {
	ReconciliationID uint `json:"reconciliation_id"`
}

// Config returns the queue configuration for settlement tasks.
func (t SettleReconciliationTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "settle_reconciliation",
		MaxAttempts: reconcile.DefaultMaxAttempts,
		Backoff:     time.Minute,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SettleReconciliationProcessor creates a processor function for SettleReconciliationTask.
func SettleReconciliationProcessor(settler Settler, logger *zap.Logger) backlite.QueueProcessor[SettleReconciliationTask] {
	return func(ctx context.Context, task SettleReconciliationTask) error {
		if settler == nil {
			return errors.New("settler not configured")
		}

		outcome, err := settler.Settle(ctx, task.ReconciliationID)
		if err != nil {
			return fmt.Errorf("settle reconciliation %d: %w", task.ReconciliationID, err)
		}

		logger.Info("settlement task finished",
			zap.Uint("reconciliation_id", task.ReconciliationID),
			zap.String("outcome", string(outcome)))
		return nil
	}
}

// NewSettleReconciliationQueue creates a backlite queue for settlement tasks.
func NewSettleReconciliationQueue(settler Settler, logger *zap.Logger) backlite.Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return backlite.NewQueue(SettleReconciliationProcessor(settler, logger))
}
