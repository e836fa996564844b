package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", NotFound("book %d", 1), KindNotFound},
		{"unauthorized", Unauthorized("missing token"), KindUnauthorized},
		{"invalid state", InvalidState("book is free"), KindInvalidState},
		{"payment failed", PaymentFailed("card declined"), KindPaymentFailed},
		{"conflict", Conflict("user exists"), KindConflict},
		{"validation", Validation("bad email"), KindValidation},
		{"wrapped twice", fmt.Errorf("submit payment: %w", NotFound("intent")), KindNotFound},
		{"foreign error", errors.New("disk full"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "book 7", Detail(NotFound("book %d", 7)))
	assert.Equal(t, "disk full", Detail(errors.New("disk full")))
	assert.Equal(t, "", Detail(nil))
	assert.True(t, errors.Is(PaymentFailed("declined"), ErrPaymentFailed))
}
