// Package validation holds the operator API request bodies and checks their
// shape. Domain rules (merge keys, payment sufficiency, fulfillment metadata)
// stay in the services that own them.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/models"
)

// AddLineRequest adds a catalog item to the cart
type AddLineRequest struct {
	ItemID   string           `json:"item_id" validate:"required,max=64"`
	Quantity *int             `json:"quantity,omitempty"`
	Variant  string           `json:"variant,omitempty" validate:"max=50"`
	WeightKg *decimal.Decimal `json:"weight_kg,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// SetQuantityRequest replaces a line's quantity
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// DiscountRequest applies a card-holder discount
type DiscountRequest struct {
	Type          string `json:"type" validate:"required,oneof=SENIOR PWD NONE"`
	TotalPax      int    `json:"total_pax" validate:"min=1,max=100"`
	EligibleCount int    `json:"eligible_count" validate:"min=0,max=100"`
}

// CheckoutRequest confirms payment and fulfillment
type CheckoutRequest struct {
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=CASH DIGITAL"`
	Tendered        decimal.Decimal `json:"tendered"`
	Reference       string          `json:"reference,omitempty" validate:"max=64"`
	OrderType       string          `json:"order_type" validate:"required,oneof=DINE_IN TAKEOUT DELIVERY"`
	TableNumber     *int            `json:"table_number,omitempty"`
	DeliveryAddress *string         `json:"delivery_address,omitempty" validate:"omitempty,max=255"`
	DeliveryTime    *time.Time      `json:"delivery_time,omitempty"`
	ContactNumber   *string         `json:"contact_number,omitempty" validate:"omitempty,max=32"`
	ServerID        string          `json:"server_id,omitempty" validate:"max=64"`
}

// NetworkRequest is the operator's connectivity override
type NetworkRequest struct {
	Online *bool `json:"online" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates a request body and reports the first violation as an
// INVALID_INPUT error naming the JSON field
func Struct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return models.NewInvalidInput(fe.Field(), describe(fe))
	}
	return models.NewInvalidInput("", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// QuantityOrDefault treats an omitted quantity as one
func (r *AddLineRequest) QuantityOrDefault() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}
