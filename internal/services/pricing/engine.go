// Package pricing turns catalog selections into priced cart lines and
// computes the proportional card-holder discount.
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/models"
)

// Input is the operator's selection for one add action. Exactly one of
// WeightKg and Price is used for WEIGHTED items; Quantity and Variant are
// used for the other modes.
type Input struct {
	Quantity int
	Variant  string
	WeightKg *decimal.Decimal
	Price    *decimal.Decimal
}

// Engine prices individual lines. It holds no cart state.
type Engine struct {
	newID func() string
}

// NewEngine creates an engine that assigns random UUID line ids
func NewEngine() *Engine {
	return &Engine{newID: uuid.NewString}
}

// PriceLine converts an item and the operator's input into a cart line
func (e *Engine) PriceLine(item models.CatalogItem, in Input) (models.CartLine, error) {
	line := models.CartLine{
		ID:     e.newID(),
		ItemID: item.ID,
		Name:   item.Name,
		Mode:   item.Mode,
	}

	switch item.Mode {
	case models.PricingFixed:
		if in.Variant != "" {
			return models.CartLine{}, models.NewInvalidInput("variant", fmt.Sprintf("%s has no variants", item.Name))
		}
		if in.Quantity <= 0 {
			return models.CartLine{}, models.NewInvalidInput("quantity", "must be greater than 0")
		}
		line.Quantity = in.Quantity
		line.UnitPrice = models.RoundMoney(item.UnitPrice)

	case models.PricingVariant:
		if in.Variant == "" {
			return models.CartLine{}, models.NewInvalidInput("variant", fmt.Sprintf("%s requires a variant", item.Name))
		}
		variant, ok := item.FindVariant(in.Variant)
		if !ok {
			return models.CartLine{}, models.NewInvalidInput("variant", fmt.Sprintf("unknown variant %q for %s", in.Variant, item.Name))
		}
		if in.Quantity <= 0 {
			return models.CartLine{}, models.NewInvalidInput("quantity", "must be greater than 0")
		}
		line.Variant = variant.Name
		line.Quantity = in.Quantity
		line.UnitPrice = models.RoundMoney(variant.Price)

	case models.PricingWeighted:
		return e.priceWeighted(item, in, line)

	default:
		return models.CartLine{}, models.NewInvalidInput("pricing_mode", fmt.Sprintf("unsupported pricing mode %q", item.Mode))
	}

	line.LineTotal = LineTotal(line.UnitPrice, line.Quantity)
	return line, nil
}

// priceWeighted keeps whichever axis the operator entered and derives the other.
func (e *Engine) priceWeighted(item models.CatalogItem, in Input, line models.CartLine) (models.CartLine, error) {
	rate := models.RoundMoney(item.UnitPrice)
	if !rate.IsPositive() {
		return models.CartLine{}, models.NewInvalidInput("unit_price", fmt.Sprintf("%s has no rate per kg", item.Name))
	}
	if in.Variant != "" {
		return models.CartLine{}, models.NewInvalidInput("variant", fmt.Sprintf("%s has no variants", item.Name))
	}

	var weight, price decimal.Decimal
	switch {
	case in.WeightKg != nil && in.Price != nil:
		return models.CartLine{}, models.NewInvalidInput("weight_kg", "enter either a weight or a price, not both")
	case in.WeightKg != nil:
		weight = *in.WeightKg
		if !weight.IsPositive() {
			return models.CartLine{}, models.NewInvalidInput("weight_kg", "must be greater than 0")
		}
		if !weight.Equal(weight.Round(2)) {
			return models.CartLine{}, models.NewInvalidInput("weight_kg", "must have at most 2 decimal places")
		}
		price = models.RoundMoney(weight.Mul(rate))
	case in.Price != nil:
		price = *in.Price
		if !price.IsPositive() {
			return models.CartLine{}, models.NewInvalidInput("price", "must be greater than 0")
		}
		if !price.Equal(models.RoundMoney(price)) {
			return models.CartLine{}, models.NewInvalidInput("price", "must have at most 2 decimal places")
		}
		weight = price.DivRound(rate, 2)
		if !weight.IsPositive() {
			return models.CartLine{}, models.NewInvalidInput("price", "amount is below the smallest weighable portion")
		}
	default:
		return models.CartLine{}, models.NewInvalidInput("weight_kg", "weighted items require a weight or a price")
	}

	line.Quantity = 1
	line.WeightKg = &weight
	line.UnitPrice = rate
	line.LineTotal = price
	return line, nil
}

// LineTotal is the deterministic total of a FIXED or VARIANT line
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return models.RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}
