package purchase

import "github.com/mrlokans/ebookstore/internal/entities"

// State is the purchase progress of one (user, book) pair, derived from ledger rows.
type State string

const (
	StateUnpurchased   State = "unpurchased"
	StateIntentPending State = "intent_pending"
	StateVerified      State = "verified"
	// StateAwaitingReconciliation is a paid, verified intent whose purchase
	// row has not been written yet.
	StateAwaitingReconciliation State = "awaiting_reconciliation"
)

// ResolveState maps the ledger rows of a pair to its State. A purchase always
// wins. An open reconciliation means a charge was taken that the ledger has
// not recorded yet.
func ResolveState(intent *entities.PurchaseIntent, purchase *entities.Purchase, open *entities.Reconciliation) State {
	switch {
	case purchase != nil:
		return StateVerified
	case open != nil:
		return StateAwaitingReconciliation
	case intent == nil:
		return StateUnpurchased
	case intent.Verified:
		return StateAwaitingReconciliation
	default:
		return StateIntentPending
	}
}
