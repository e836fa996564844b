package tasks

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Inline runs the same work as the queues synchronously, for deployments
// with the task queue disabled.
type Inline struct {
	settler Settler
	pruner  IntentPruner
	cleaner AuditEventCleaner
	logger  *zap.Logger
}

// NewInline creates an Inline dispatcher. Any collaborator may be nil, which
// skips that kind of work.
func NewInline(settler Settler, pruner IntentPruner, cleaner AuditEventCleaner, logger *zap.Logger) *Inline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inline{settler: settler, pruner: pruner, cleaner: cleaner, logger: logger}
}

// EnqueueSettlement settles the reconciliation immediately.
func (i *Inline) EnqueueSettlement(ctx context.Context, reconciliationID uint) error {
	if i.settler == nil {
		return nil
	}
	return SettleReconciliationProcessor(i.settler, i.logger)(ctx, SettleReconciliationTask{ReconciliationID: reconciliationID})
}

// EnqueueMaintenance prunes intents and cleans the audit trail immediately.
func (i *Inline) EnqueueMaintenance(ctx context.Context, m Maintenance) error {
	var errs []error
	if i.pruner != nil && m.IntentTTL > 0 {
		errs = append(errs, PruneStaleIntentsProcessor(i.pruner, i.logger)(ctx, PruneStaleIntentsTask{OlderThan: m.IntentTTL}))
	}
	if i.cleaner != nil && m.AuditRetentionDays > 0 {
		errs = append(errs, CleanupAuditEventsProcessor(i.cleaner, i.logger)(ctx, CleanupAuditEventsTask{RetentionDays: m.AuditRetentionDays}))
	}
	return errors.Join(errs...)
}
