package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents how the order is fulfilled
type OrderType string

const (
	DineIn   OrderType = "DINE_IN"
	Takeout  OrderType = "TAKEOUT"
	Delivery OrderType = "DELIVERY"
)

// PaymentMethod represents how the order was paid
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentDigital PaymentMethod = "DIGITAL"
)

// Payment is the operator's payment input at confirmation time
type Payment struct {
	Method    PaymentMethod   `json:"method"`
	Tendered  decimal.Decimal `json:"tendered"`
	Reference string          `json:"reference,omitempty"`
}

// Fulfillment carries the type-specific metadata of an order
type Fulfillment struct {
	Type            OrderType  `json:"order_type"`
	TableNumber     *int       `json:"table_number,omitempty"`
	DeliveryAddress *string    `json:"delivery_address,omitempty"`
	DeliveryTime    *time.Time `json:"delivery_time,omitempty"`
	ContactNumber   *string    `json:"contact_number,omitempty"`
}

// Order is the durable unit. It is created once at payment confirmation and
// never mutated afterwards except for the remote identifiers.
type Order struct {
	LocalID      string          `json:"local_id"`
	Number       string          `json:"order_number"`
	RemoteID     string          `json:"remote_id,omitempty"`
	RemoteNumber string          `json:"remote_number,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []CartLine      `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DiscountType DiscountType    `json:"discount_type"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Tendered     decimal.Decimal `json:"tendered"`
	Change       decimal.Decimal `json:"change"`
	Payment      Payment         `json:"payment"`
	Fulfillment  Fulfillment     `json:"fulfillment"`
	ServerName   string          `json:"server_name,omitempty"`
}

// Confirmed reports whether the remote store has accepted the order.
func (o *Order) Confirmed() bool {
	return o.RemoteID != ""
}

// GenerateOrderNumber generates an order number in format ORD_YYYYMMDD_NNN
func GenerateOrderNumber(date time.Time, sequence int) string {
	dateStr := date.Format("20060102")
	return fmt.Sprintf("ORD_%s_%03d", dateStr, sequence)
}

// Validate checks the fulfillment metadata against its type
func (f *Fulfillment) Validate() error {
	switch f.Type {
	case DineIn:
		if f.TableNumber == nil {
			return NewInvalidInput("table_number", "required for DINE_IN orders")
		}
		if *f.TableNumber < 1 || *f.TableNumber > 100 {
			return NewInvalidInput("table_number", "must be between 1 and 100")
		}
		if f.DeliveryAddress != nil {
			return NewInvalidInput("delivery_address", "must not be present for DINE_IN orders")
		}
	case Delivery:
		if f.DeliveryAddress == nil || strings.TrimSpace(*f.DeliveryAddress) == "" {
			return NewInvalidInput("delivery_address", "required for DELIVERY orders")
		}
		if len(strings.TrimSpace(*f.DeliveryAddress)) < 10 {
			return NewInvalidInput("delivery_address", "must be at least 10 characters")
		}
		if f.TableNumber != nil {
			return NewInvalidInput("table_number", "must not be present for DELIVERY orders")
		}
	case Takeout:
		if f.TableNumber != nil {
			return NewInvalidInput("table_number", "must not be present for TAKEOUT orders")
		}
		if f.DeliveryAddress != nil {
			return NewInvalidInput("delivery_address", "must not be present for TAKEOUT orders")
		}
	default:
		return NewInvalidInput("order_type", "must be one of: DINE_IN, TAKEOUT, DELIVERY")
	}
	return nil
}
