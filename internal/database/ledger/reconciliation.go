package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/utils"
)

// maxReasonLength matches the size of the reconciliations.reason column.
const maxReasonLength = 500

// CreateReconciliation stores a paid charge that still has to reach the ledger.
// Recording the same charge twice returns the existing row.
func (r *Repository) CreateReconciliation(ctx context.Context, rec *entities.Reconciliation) (*entities.Reconciliation, error) {
	if rec.Status == "" {
		rec.Status = entities.ReconciliationPending
	}
	rec.Reason = utils.Truncate(rec.Reason, maxReasonLength)
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create reconciliation: %w", err)
	}

	var existing entities.Reconciliation
	if err := r.db.WithContext(ctx).Where("charge_ref = ?", rec.ChargeRef).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("load reconciliation for charge %s: %w", rec.ChargeRef, err)
	}
	return &existing, nil
}

// GetReconciliation returns a reconciliation by ID.
func (r *Repository) GetReconciliation(ctx context.Context, id uint) (*entities.Reconciliation, error) {
	var rec entities.Reconciliation
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("reconciliation %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reconciliation %d: %w", id, err)
	}
	return &rec, nil
}

// FindOpenReconciliation returns a pending or failed reconciliation for (user, book), or nil.
func (r *Repository) FindOpenReconciliation(ctx context.Context, userID, bookID uint) (*entities.Reconciliation, error) {
	var rec entities.Reconciliation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID,
			[]entities.ReconciliationStatus{entities.ReconciliationPending, entities.ReconciliationFailed}).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open reconciliation: %w", err)
	}
	return &rec, nil
}

// PendingReconciliations returns unresolved reconciliations, oldest first.
func (r *Repository) PendingReconciliations(ctx context.Context, limit int) ([]entities.Reconciliation, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []entities.Reconciliation
	err := r.db.WithContext(ctx).
		Where("status = ?", entities.ReconciliationPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ResolveReconciliation marks the reconciliation settled.
func (r *Repository) ResolveReconciliation(ctx context.Context, id uint) error {
	now := time.Now()
	return r.updateReconciliation(ctx, id, map[string]any{
		"status":      entities.ReconciliationResolved,
		"resolved_at": now,
		"attempts":    gorm.Expr("attempts + 1"),
	})
}

// ConfirmReconciled writes the purchase for a reconciled charge in one transaction.
// The intent is verified with the charge reference; when it no longer exists a
// verified intent is recreated from the reconciliation, so every purchase keeps
// a verified intent carrying its charge.
func (r *Repository) ConfirmReconciled(ctx context.Context, rec *entities.Reconciliation) (*entities.Purchase, error) {
	var purchase *entities.Purchase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intent, err := reconciledIntent(tx, rec)
		if err != nil {
			return err
		}

		p, err := recordPurchase(tx, rec.UserID, rec.BookID, intent.ID)
		if err != nil {
			return err
		}
		purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// reconciledIntent returns the verified intent a reconciled purchase points at
// and repoints the reconciliation when the intent had to be replaced.
func reconciledIntent(tx *gorm.DB, rec *entities.Reconciliation) (*entities.PurchaseIntent, error) {
	intent, err := intentForReconciliation(tx, rec)
	if err != nil {
		return nil, err
	}

	if intent.ID == 0 {
		// Pruned with no newer intent for the pair: recreate it already verified.
		intent = &entities.PurchaseIntent{
			UserID:     rec.UserID,
			BookID:     rec.BookID,
			Price:      rec.Amount,
			GatewayRef: rec.ChargeRef,
			Verified:   true,
		}
		if err := tx.Create(intent).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return nil, apperr.Conflict("purchase intent already exists for user %d and book %d", rec.UserID, rec.BookID)
			}
			return nil, fmt.Errorf("recreate intent: %w", err)
		}
	} else {
		err := tx.Model(&entities.PurchaseIntent{}).
			Where("id = ?", intent.ID).
			Updates(map[string]any{
				"verified":    true,
				"gateway_ref": rec.ChargeRef,
				"price":       rec.Amount,
			}).Error
		if err != nil {
			return nil, fmt.Errorf("mark intent %d verified: %w", intent.ID, err)
		}
		intent.Verified = true
		intent.GatewayRef = rec.ChargeRef
		intent.Price = rec.Amount
	}

	if intent.ID != rec.IntentID {
		err := tx.Model(&entities.Reconciliation{}).Where("id = ?", rec.ID).Update("intent_id", intent.ID).Error
		if err != nil {
			return nil, fmt.Errorf("repoint reconciliation %d: %w", rec.ID, err)
		}
	}
	return intent, nil
}

// intentForReconciliation loads the recorded intent, falling back to the current
// intent for the pair. A zero-ID intent means neither exists.
func intentForReconciliation(tx *gorm.DB, rec *entities.Reconciliation) (*entities.PurchaseIntent, error) {
	var intent entities.PurchaseIntent
	err := tx.First(&intent, rec.IntentID).Error
	if err == nil {
		if intent.UserID != rec.UserID || intent.BookID != rec.BookID {
			return nil, apperr.InvalidState("intent %d does not belong to reconciliation %d", rec.IntentID, rec.ID)
		}
		return &intent, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load intent %d: %w", rec.IntentID, err)
	}

	found, err := findIntent(tx, rec.UserID, rec.BookID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return &entities.PurchaseIntent{}, nil
	}
	return found, nil
}

// RecordReconciliationAttempt counts a failed settlement attempt and keeps the reason.
// Once attempts reach maxAttempts the reconciliation is marked failed for manual follow-up.
func (r *Repository) RecordReconciliationAttempt(ctx context.Context, id uint, reason string, maxAttempts int) error {
	rec, err := r.GetReconciliation(ctx, id)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"attempts": rec.Attempts + 1,
		"reason":   utils.Truncate(reason, maxReasonLength),
	}
	if maxAttempts > 0 && rec.Attempts+1 >= maxAttempts {
		updates["status"] = entities.ReconciliationFailed
	}
	return r.updateReconciliation(ctx, id, updates)
}

func (r *Repository) updateReconciliation(ctx context.Context, id uint, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.Reconciliation{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update reconciliation %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("reconciliation %d", id)
	}
	return nil
}
