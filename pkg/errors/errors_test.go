package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappers(t *testing.T) {
	tests := []struct {
		name       string
		err        *BusinessError
		code       string
		validation bool
		conflict   bool
		notFound   bool
	}{
		{"validation", WrapValidation("bad input"), ErrCodeValidation, true, false, false},
		{"amount", WrapInvalidPaymentAmount("-5"), ErrCodeValidation, true, false, false},
		{"customer", WrapCustomerNotFound("line:U1"), ErrCodeCustomerNotFound, true, false, true},
		{"payment", WrapPaymentNotFound("pay-1"), ErrCodePaymentNotFound, false, false, true},
		{"obligation", WrapObligationNotFound("order", "o-1"), ErrCodeObligationNotFound, false, false, true},
		{"unsupported", WrapUnsupportedKind("voucher"), ErrCodeUnsupportedKind, false, false, false},
		{"payment conflict", WrapPaymentConflict("pay-1", "matched"), ErrCodeConflict, false, true, false},
		{"obligation conflict", WrapObligationConflict("pay-1", "order", "o-1", "cancelled", "order is closed"), ErrCodeConflict, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// wrapping again must not hide the code
			err := fmt.Errorf("classify: %w", tt.err)

			assert.Equal(t, tt.code, Code(err))
			assert.Equal(t, tt.validation, IsValidation(err))
			assert.Equal(t, tt.conflict, IsConflict(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Contains(t, err.Error(), tt.code)
		})
	}
}

func TestWrapPaymentConflict_Details(t *testing.T) {
	err := WrapPaymentConflict("pay-1", "rejected")

	assert.True(t, errors.Is(err, ErrInvalidPaymentState))
	assert.Equal(t, map[string]string{"payment_id": "pay-1", "payment_status": "rejected"}, DetailsOf(err))
	assert.Nil(t, DetailsOf(errors.New("plain")))
}

func TestWrapPersistence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"plain failure", errors.New("disk full"), ErrCodePersistence},
		{"transient storage", errors.Join(ErrTransient, errors.New("deadlock detected")), ErrCodeTransient},
		{"deadline", context.DeadlineExceeded, ErrCodeTransient},
		{"cancelled", fmt.Errorf("query: %w", context.Canceled), ErrCodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapPersistence(tt.err)
			assert.Equal(t, tt.code, err.Code)
			assert.True(t, IsPersistence(err))
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, tt.code == ErrCodeTransient, IsTransient(err))
		})
	}
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, ErrCodeCacheError, Code(WrapCacheError(errors.New("redis down"))))
}
