package purchase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/entities"
)

func TestResolveState(t *testing.T) {
	pending := &entities.PurchaseIntent{ID: 1}
	verified := &entities.PurchaseIntent{ID: 1, Verified: true, GatewayRef: "ch_1"}
	purchase := &entities.Purchase{ID: 1}
	open := &entities.Reconciliation{ID: 1, Status: entities.ReconciliationPending}

	tests := []struct {
		name     string
		intent   *entities.PurchaseIntent
		purchase *entities.Purchase
		open     *entities.Reconciliation
		want     State
	}{
		{"nothing recorded", nil, nil, nil, StateUnpurchased},
		{"pending intent", pending, nil, nil, StateIntentPending},
		{"verified intent without purchase", verified, nil, nil, StateAwaitingReconciliation},
		{"pending intent with open reconciliation", pending, nil, open, StateAwaitingReconciliation},
		{"verified with purchase", verified, purchase, nil, StateVerified},
		{"purchase without intent", nil, purchase, nil, StateVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveState(tt.intent, tt.purchase, tt.open))
		})
	}
}

func TestCardDetails_Validate(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		card    CardDetails
		wantErr string
	}{
		{"valid four digit year", CardDetails{"4242424242424242", "12", "2030"}, ""},
		{"valid two digit year", CardDetails{"4242 4242 4242 4242", "1", "30"}, ""},
		{"expires this month", CardDetails{"4242424242424242", "10", "2026"}, ""},
		{"expired last month", CardDetails{"4242424242424242", "09", "2026"}, "card has expired"},
		{"too short", CardDetails{"4242", "12", "2030"}, "card_number must have 12 to 19 digits"},
		{"letters", CardDetails{"4242abcd42424242", "12", "2030"}, "card_number must contain only digits"},
		{"bad checksum", CardDetails{"4242424242424241", "12", "2030"}, "card_number is invalid"},
		{"month zero", CardDetails{"4242424242424242", "0", "2030"}, "card_expiration_month must be between 1 and 12"},
		{"month thirteen", CardDetails{"4242424242424242", "13", "2030"}, "card_expiration_month must be between 1 and 12"},
		{"three digit year", CardDetails{"4242424242424242", "12", "203"}, "card_expiration_year must be a 2 or 4 digit year"},
		{"empty year", CardDetails{"4242424242424242", "12", ""}, "card_expiration_year must be a 2 or 4 digit year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate(now)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.wantErr, apperr.Detail(err))
		})
	}
}

func TestLinks(t *testing.T) {
	links := Links{BaseURL: "http://localhost:8000/"}

	assert.Equal(t, "http://localhost:8000/get-book-pdf/3", links.BookPDF(3))
	assert.Equal(t, "http://localhost:8000/get-book-image/3", links.BookImage(3))
	assert.Equal(t, "http://localhost:8000/process-payment/3", links.ProcessPayment(3))
	assert.Equal(t, "http://localhost:8000/purchase-book/3", links.PurchaseBook(3))
}
