// Package reconcile settles charges that were paid at the gateway but never
// reached the ledger.
//
// Settlement only writes the ledger. It never calls the gateway, so running
// it twice for the same reconciliation cannot charge anyone again.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/entities"
)

// DefaultMaxAttempts is used when no attempt budget is configured.
const DefaultMaxAttempts = 5

// Ledger is the ledger surface settlement needs.
type Ledger interface {
	GetReconciliation(ctx context.Context, id uint) (*entities.Reconciliation, error)
	PendingReconciliations(ctx context.Context, limit int) ([]entities.Reconciliation, error)
	FindPurchase(ctx context.Context, userID, bookID uint) (*entities.Purchase, error)
	ConfirmReconciled(ctx context.Context, rec *entities.Reconciliation) (*entities.Purchase, error)
	ResolveReconciliation(ctx context.Context, id uint) error
	RecordReconciliationAttempt(ctx context.Context, id uint, reason string, maxAttempts int) error
}

// Auditor receives settlement outcomes.
type Auditor interface {
	LogReconciliation(userID, reconciliationID uint, action, chargeRef string, err error)
}

// Outcome describes what Settle did.
type Outcome string

const (
	OutcomeSettled         Outcome = "settled"          // Purchase written now
	OutcomeAlreadyEntitled Outcome = "already_entitled" // Purchase existed, row closed
	OutcomeAlreadyResolved Outcome = "already_resolved" // Nothing to do
)

type Service struct {
	ledger      Ledger
	audit       Auditor
	logger      *zap.Logger
	maxAttempts int
}

// NewService creates a settlement service. auditor and logger may be nil.
func NewService(ledger Ledger, auditor Auditor, logger *zap.Logger, maxAttempts int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		ledger:      ledger,
		audit:       auditor,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Settle writes the purchase for a reconciliation and marks it resolved.
// A failed write is counted against the attempt budget and returned.
func (s *Service) Settle(ctx context.Context, id uint) (Outcome, error) {
	rec, err := s.ledger.GetReconciliation(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Status == entities.ReconciliationResolved {
		return OutcomeAlreadyResolved, nil
	}

	log := s.logger.With(
		zap.Uint("reconciliation_id", rec.ID),
		zap.Uint("user_id", rec.UserID),
		zap.Uint("book_id", rec.BookID),
		zap.String("charge_ref", rec.ChargeRef),
	)

	existing, err := s.ledger.FindPurchase(ctx, rec.UserID, rec.BookID)
	if err != nil {
		return "", s.fail(ctx, rec, log, err)
	}
	if existing != nil {
		if err := s.ledger.ResolveReconciliation(ctx, rec.ID); err != nil {
			return "", err
		}
		log.Info("reconciliation closed, purchase already recorded")
		s.logAudit(rec, "reconciliation_resolved", nil)
		return OutcomeAlreadyEntitled, nil
	}

	if err := s.write(ctx, rec); err != nil {
		return "", s.fail(ctx, rec, log, err)
	}

	if err := s.ledger.ResolveReconciliation(ctx, rec.ID); err != nil {
		return "", err
	}
	log.Info("reconciliation settled")
	s.logAudit(rec, "reconciliation_resolved", nil)
	return OutcomeSettled, nil
}

// write records the purchase against a verified intent carrying the charge
// reference, recreating the intent when it was pruned.
func (s *Service) write(ctx context.Context, rec *entities.Reconciliation) error {
	_, err := s.ledger.ConfirmReconciled(ctx, rec)
	if !errors.Is(err, apperr.ErrConflict) {
		return err
	}
	// Another writer may have recorded the purchase first.
	existing, ferr := s.ledger.FindPurchase(ctx, rec.UserID, rec.BookID)
	if ferr != nil {
		return ferr
	}
	if existing == nil {
		return err
	}
	return nil
}

func (s *Service) fail(ctx context.Context, rec *entities.Reconciliation, log *zap.Logger, cause error) error {
	log.Warn("settlement attempt failed", zap.Int("attempt", rec.Attempts+1), zap.Error(cause))
	if err := s.ledger.RecordReconciliationAttempt(ctx, rec.ID, cause.Error(), s.maxAttempts); err != nil {
		log.Error("failed to record settlement attempt", zap.Error(err))
	}
	if rec.Attempts+1 >= s.maxAttempts {
		log.Error("reconciliation needs manual follow-up", zap.Int("attempts", rec.Attempts+1))
		s.logAudit(rec, "reconciliation_failed", cause)
	}
	return fmt.Errorf("settle reconciliation %d: %w", rec.ID, cause)
}

func (s *Service) logAudit(rec *entities.Reconciliation, action string, err error) {
	if s.audit == nil {
		return
	}
	s.audit.LogReconciliation(rec.UserID, rec.ID, action, rec.ChargeRef, err)
}

// Pending lists reconciliations still waiting for settlement.
func (s *Service) Pending(ctx context.Context, limit int) ([]entities.Reconciliation, error) {
	return s.ledger.PendingReconciliations(ctx, limit)
}

// SettleAll settles every pending reconciliation in order and reports how many
// succeeded. Failures are logged and counted, not returned.
func (s *Service) SettleAll(ctx context.Context, limit int) (settled, failed int, err error) {
	pending, err := s.ledger.PendingReconciliations(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending reconciliations: %w", err)
	}
	for _, rec := range pending {
		if ctx.Err() != nil {
			return settled, failed, ctx.Err()
		}
		if _, err := s.Settle(ctx, rec.ID); err != nil {
			failed++
			continue
		}
		settled++
	}
	return settled, failed, nil
}
