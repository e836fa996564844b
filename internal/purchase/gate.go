package purchase

import (
	"context"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/entities"
)

// EntitlementReader looks up confirmed purchases.
type EntitlementReader interface {
	FindPurchase(ctx context.Context, userID, bookID uint) (*entities.Purchase, error)
}

// Gate decides whether a book's PDF may be served. It keeps no cache: every
// call reads the ledger.
type Gate struct {
	ledger EntitlementReader
}

func NewGate(ledger EntitlementReader) *Gate {
	return &Gate{ledger: ledger}
}

// CanDownload is true for free books, false without a user, and otherwise
// true only when a purchase exists for exactly this (user, book).
func (g *Gate) CanDownload(ctx context.Context, user *entities.User, book *entities.Book) (bool, error) {
	if book == nil {
		return false, apperr.NotFound("Book does not exist")
	}
	if !book.RequiresPayment() {
		return true, nil
	}
	if user == nil {
		return false, nil
	}

	purchase, err := g.ledger.FindPurchase(ctx, user.ID, book.ID)
	if err != nil {
		return false, err
	}
	return purchase != nil, nil
}
