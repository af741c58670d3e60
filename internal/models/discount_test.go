package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscountSpec(t *testing.T) {
	tests := []struct {
		name     string
		kind     DiscountType
		total    int
		eligible int
		wantErr  bool
	}{
		{"senior one of four", DiscountSenior, 4, 1, false},
		{"pwd whole table", DiscountPWD, 2, 2, false},
		{"no eligible cards", DiscountSenior, 3, 0, false},
		{"none", DiscountNone, 1, 0, false},
		{"zero pax", DiscountSenior, 0, 0, true},
		{"more cards than pax", DiscountPWD, 2, 3, true},
		{"negative cards", DiscountSenior, 2, -1, true},
		{"unknown type", DiscountType("VIP"), 2, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := NewDiscountSpec(tt.kind, tt.total, tt.eligible)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.True(t, spec.Rate.Equal(decimal.RequireFromString("0.2")))
			assert.Equal(t, tt.total, spec.TotalPax)
			assert.Equal(t, tt.eligible, spec.EligibleCount)
		})
	}
}

func TestErrorKindThroughWrapping(t *testing.T) {
	base := NewNetworkError("create order", errors.New("connection refused"))
	wrapped := fmt.Errorf("direct write: %w", base)

	assert.Equal(t, KindNetwork, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNetwork))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestCurrencyFormat(t *testing.T) {
	php, err := NewCurrency("PHP", "en")
	require.NoError(t, err)
	assert.Equal(t, "PHP", php.Code())
	assert.Equal(t, "PHP 62.50", php.Format(decimal.RequireFromString("62.5")))

	_, err = NewCurrency("XX", "en")
	assert.Error(t, err)
}
