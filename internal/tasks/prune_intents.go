package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// IntentPruner deletes unverified purchase intents.
type IntentPruner interface {
	DeleteStaleIntents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PruneStaleIntentsTask removes purchase intents that never reached payment.
type PruneStaleIntentsTask struct {
	OlderThan time.Duration `json:"older_than"`
}

// Config returns the queue configuration for intent pruning tasks.
func (t PruneStaleIntentsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_stale_intents",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneStaleIntentsProcessor creates a processor function for PruneStaleIntentsTask.
func PruneStaleIntentsProcessor(pruner IntentPruner, logger *zap.Logger) backlite.QueueProcessor[PruneStaleIntentsTask] {
	return func(ctx context.Context, task PruneStaleIntentsTask) error {
		if pruner == nil {
			return errors.New("intent pruner not configured")
		}
		if task.OlderThan <= 0 {
			return nil
		}

		deleted, err := pruner.DeleteStaleIntents(ctx, task.OlderThan)
		if err != nil {
			return fmt.Errorf("prune stale intents: %w", err)
		}

		logger.Info("pruned stale purchase intents",
			zap.Int64("deleted", deleted),
			zap.Duration("older_than", task.OlderThan))
		return nil
	}
}

// NewPruneStaleIntentsQueue creates a backlite queue for intent pruning tasks.
func NewPruneStaleIntentsQueue(pruner IntentPruner, logger *zap.Logger) backlite.Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return backlite.NewQueue(PruneStaleIntentsProcessor(pruner, logger))
}
