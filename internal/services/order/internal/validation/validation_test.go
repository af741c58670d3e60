package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pos-terminal/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		req       interface{}
		wantField string
	}{
		{
			name: "valid checkout",
			req: &CheckoutRequest{
				PaymentMethod: "CASH",
				OrderType:     "DINE_IN",
				TableNumber:   intPtr(4),
			},
		},
		{
			name:      "missing payment method",
			req:       &CheckoutRequest{OrderType: "TAKEOUT"},
			wantField: "payment_method",
		},
		{
			name:      "invalid order type",
			req:       &CheckoutRequest{PaymentMethod: "CASH", OrderType: "drive_thru"},
			wantField: "order_type",
		},
		{
			name: "address too long",
			req: &CheckoutRequest{
				PaymentMethod:   "CASH",
				OrderType:       "DELIVERY",
				DeliveryAddress: strPtr(string(make([]byte, 300))),
			},
			wantField: "delivery_address",
		},
		{
			name:      "missing item id",
			req:       &AddLineRequest{Quantity: intPtr(2)},
			wantField: "item_id",
		},
		{
			name:      "zero pax",
			req:       &DiscountRequest{Type: "SENIOR", TotalPax: 0},
			wantField: "total_pax",
		},
		{
			name:      "unknown discount",
			req:       &DiscountRequest{Type: "STUDENT", TotalPax: 2},
			wantField: "type",
		},
		{
			name:      "network without state",
			req:       &NetworkRequest{},
			wantField: "online",
		},
		{
			name: "zero quantity is left to the cart to clamp",
			req:  &SetQuantityRequest{Quantity: intPtr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var e *models.Error
			if assert.ErrorAs(t, err, &e) {
				assert.Equal(t, models.KindInvalidInput, e.Kind)
				assert.Equal(t, tt.wantField, e.Field)
			}
		})
	}
}

func TestAddLineRequest_QuantityOrDefault(t *testing.T) {
	assert.Equal(t, 1, (&AddLineRequest{}).QuantityOrDefault())
	assert.Equal(t, 3, (&AddLineRequest{Quantity: intPtr(3)}).QuantityOrDefault())
}
