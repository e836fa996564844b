package entities

import "time"

// PurchaseIntent records an attempt to buy a book before the payment is confirmed.
type PurchaseIntent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"uniqueIndex:ux_intent_user_book,priority:1" json:"user_id"`
	BookID     uint      `gorm:"uniqueIndex:ux_intent_user_book,priority:2;index" json:"book_id"`
	Price      int64     `json:"price"`                                // Snapshot of the book price when the intent was created
	GatewayRef string    `gorm:"size:255" json:"gateway_ref,omitempty"` // Charge ID, empty until the charge is paid
	Verified   bool      `gorm:"default:false" json:"verified"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (PurchaseIntent) TableName() string {
	return "purchase_intents"
}

// Purchase is the entitlement fact: the user may download the book.
type Purchase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:ux_purchase_user_book,priority:1" json:"user_id"`
	BookID    uint      `gorm:"uniqueIndex:ux_purchase_user_book,priority:2;index" json:"book_id"`
	IntentID  uint      `gorm:"index" json:"intent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationResolved ReconciliationStatus = "resolved"
	ReconciliationFailed   ReconciliationStatus = "failed"
)

// Reconciliation keeps the charge reference of a payment that succeeded at the
// gateway but could not be written to the ledger.
type Reconciliation struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	UserID     uint                 `gorm:"index" json:"user_id"`
	BookID     uint                 `gorm:"index" json:"book_id"`
	IntentID   uint                 `json:"intent_id"`
	ChargeRef  string               `gorm:"uniqueIndex;size:255" json:"charge_ref"`
	Amount     int64                `json:"amount"`
	Currency   string               `gorm:"size:3" json:"currency"`
	Reason     string               `gorm:"size:500" json:"reason"`
	Status     ReconciliationStatus `gorm:"index;size:20;default:'pending'" json:"status"`
	Attempts   int                  `json:"attempts"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func (Reconciliation) TableName() string {
	return "reconciliations"
}
