// Package checkout assembles a priced cart and the payment input into an
// immutable Order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/models"
	"pos-terminal/internal/services/pricing"
)

// CashTolerance absorbs floating rounding on the operator's tendered amount
var CashTolerance = decimal.RequireFromString("0.1")

// Request is everything the operator confirms at the payment step
type Request struct {
	Lines       []models.CartLine
	Discount    *models.DiscountSpec
	Payment     models.Payment
	Fulfillment models.Fulfillment
	ServerName  string
}

// Totals is the money summary of a set of lines under an optional discount
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals applies total = max(0, subtotal - discount)
func ComputeTotals(lines []models.CartLine, spec *models.DiscountSpec) Totals {
	subtotal := pricing.Subtotal(lines)
	discount := decimal.Zero
	if spec != nil {
		discount = pricing.Allocate(subtotal, *spec)
	}
	total := decimal.Max(decimal.Zero, subtotal.Sub(discount))
	return Totals{Subtotal: subtotal, Discount: discount, Total: models.RoundMoney(total)}
}

// Assembler builds Orders. Numbers are only consumed by successful assemblies.
type Assembler struct {
	counter *Counter
	now     func() time.Time
	newID   func() string
}

// NewAssembler creates an assembler numbering orders from counter
func NewAssembler(counter *Counter) *Assembler {
	return &Assembler{
		counter: counter,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Assemble validates the request and freezes it into an Order
func (a *Assembler) Assemble(ctx context.Context, req Request) (*models.Order, error) {
	if len(req.Lines) == 0 {
		return nil, models.NewEmptyOrder()
	}
	if err := req.Fulfillment.Validate(); err != nil {
		return nil, err
	}

	totals := ComputeTotals(req.Lines, req.Discount)

	tendered, change, err := settle(req.Payment, totals.Total)
	if err != nil {
		return nil, err
	}

	number, err := a.counter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign order number: %w", err)
	}

	discountType := models.DiscountNone
	if req.Discount != nil && totals.Discount.IsPositive() {
		discountType = req.Discount.Type
	}

	payment := req.Payment
	payment.Reference = strings.TrimSpace(payment.Reference)
	payment.Tendered = tendered

	return &models.Order{
		LocalID:      a.newID(),
		Number:       number,
		CreatedAt:    a.now().UTC(),
		Lines:        freezeLines(req.Lines),
		Subtotal:     totals.Subtotal,
		DiscountType: discountType,
		Discount:     totals.Discount,
		Total:        totals.Total,
		Tendered:     tendered,
		Change:       change,
		Payment:      payment,
		Fulfillment:  req.Fulfillment,
		ServerName:   req.ServerName,
	}, nil
}

// settle validates the payment against total and returns tendered and change
func settle(p models.Payment, total decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch p.Method {
	case models.PaymentCash:
		tendered := models.RoundMoney(p.Tendered)
		if tendered.IsNegative() {
			return decimal.Zero, decimal.Zero, models.NewInvalidInput("tendered", "must not be negative")
		}
		if tendered.LessThan(total.Sub(CashTolerance)) {
			return decimal.Zero, decimal.Zero, models.NewPaymentInsufficient(
				fmt.Sprintf("tendered %s is less than total %s", tendered.StringFixed(2), total.StringFixed(2)))
		}
		change := decimal.Max(decimal.Zero, tendered.Sub(total))
		return tendered, models.RoundMoney(change), nil

	case models.PaymentDigital:
		if strings.TrimSpace(p.Reference) == "" {
			return decimal.Zero, decimal.Zero, models.NewMissingReference()
		}
		return total, decimal.Zero, nil

	default:
		return decimal.Zero, decimal.Zero, models.NewInvalidInput("payment_method", "must be one of: CASH, DIGITAL")
	}
}

func freezeLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	for i, line := range lines {
		if line.WeightKg != nil {
			w := *line.WeightKg
			line.WeightKg = &w
		}
		out[i] = line
	}
	return out
}
