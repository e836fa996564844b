// Package ledger is the Entitlement Ledger: durable storage of purchase intents,
// confirmed purchases and the reconciliation records kept when a paid charge
// could not be written.
//
// Both purchase_intents and purchases carry a unique index on (user_id, book_id),
// so a second intent or purchase for the same pair surfaces as apperr.ErrConflict.
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
)

// Repository handles all ledger database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindIntent returns the most recent intent for (user, book), or nil.
func (r *Repository) FindIntent(ctx context.Context, userID, bookID uint) (*entities.PurchaseIntent, error) {
	return findIntent(r.db.WithContext(ctx), userID, bookID)
}

// CreateIntent records a pending intent with a snapshot of the price.
func (r *Repository) CreateIntent(ctx context.Context, userID, bookID uint, price int64) (*entities.PurchaseIntent, error) {
	intent := &entities.PurchaseIntent{
		UserID: userID,
		BookID: bookID,
		Price:  price,
	}
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("purchase intent already exists for user %d and book %d", userID, bookID)
		}
		return nil, fmt.Errorf("create intent: %w", err)
	}
	return intent, nil
}

// MarkVerified stores the gateway reference and flips the intent to verified.
func (r *Repository) MarkVerified(ctx context.Context, intentID uint, gatewayRef string) error {
	return markVerified(r.db.WithContext(ctx), intentID, gatewayRef)
}

// FindPurchase returns the confirmed purchase for (user, book), or nil.
func (r *Repository) FindPurchase(ctx context.Context, userID, bookID uint) (*entities.Purchase, error) {
	var purchase entities.Purchase
	err := r.db.WithContext(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	return &purchase, nil
}

// RecordPurchase appends the entitlement fact for (user, book).
func (r *Repository) RecordPurchase(ctx context.Context, userID, bookID, intentID uint) (*entities.Purchase, error) {
	return recordPurchase(r.db.WithContext(ctx), userID, bookID, intentID)
}

// ConfirmPurchase marks the intent verified and records the purchase in one transaction,
// so a purchase never exists without its verified intent.
func (r *Repository) ConfirmPurchase(ctx context.Context, intentID uint, gatewayRef string) (*entities.Purchase, error) {
	var purchase *entities.Purchase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intent entities.PurchaseIntent
		if err := tx.First(&intent, intentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("purchase intent %d", intentID)
			}
			return fmt.Errorf("load intent %d: %w", intentID, err)
		}

		if err := markVerified(tx, intentID, gatewayRef); err != nil {
			return err
		}

		p, err := recordPurchase(tx, intent.UserID, intent.BookID, intentID)
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

// TouchIntent bumps the intent's updated_at so the stale intent prune leaves it
// alone while a payment is running. A pruned intent is NotFound.
func (r *Repository) TouchIntent(ctx context.Context, intentID uint) error {
	result := r.db.WithContext(ctx).Model(&entities.PurchaseIntent{}).
		Where("id = ?", intentID).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("touch intent %d: %w", intentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("purchase intent %d", intentID)
	}
	return nil
}

// DeleteStaleIntents removes unverified intents untouched since the cutoff.
// Intents referenced by an unresolved reconciliation are kept.
func (r *Repository) DeleteStaleIntents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("verified = ? AND updated_at < ?", false, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM reconciliations WHERE reconciliations.intent_id = purchase_intents.id AND reconciliations.status <> ?)",
			entities.ReconciliationResolved).
		Delete(&entities.PurchaseIntent{})
	return result.RowsAffected, result.Error
}

// CountPurchases returns the number of purchases recorded for a book.
func (r *Repository) CountPurchases(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Purchase{}).Where("book_id = ?", bookID).Count(&count).Error
	return count, err
}

func findIntent(db *gorm.DB, userID, bookID uint) (*entities.PurchaseIntent, error) {
	var intent entities.PurchaseIntent
	err := db.Where("user_id = ? AND book_id = ?", userID, bookID).Order("id DESC").First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find intent: %w", err)
	}
	return &intent, nil
}

func markVerified(db *gorm.DB, intentID uint, gatewayRef string) error {
	result := db.Model(&entities.PurchaseIntent{}).
		Where("id = ?", intentID).
		Updates(map[string]any{
			"verified":    true,
			"gateway_ref": gatewayRef,
		})
	if result.Error != nil {
		return fmt.Errorf("mark intent %d verified: %w", intentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("purchase intent %d", intentID)
	}
	return nil
}

func recordPurchase(db *gorm.DB, userID, bookID, intentID uint) (*entities.Purchase, error) {
	purchase := &entities.Purchase{
		UserID:   userID,
		BookID:   bookID,
		IntentID: intentID,
	}
	if err := db.Create(purchase).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("book %d already purchased by user %d", bookID, userID)
		}
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return purchase, nil
}
