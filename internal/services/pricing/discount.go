package pricing

import (
	"github.com/shopspring/decimal"

	"pos-terminal/internal/models"
)

// Allocate discounts only the share of the bill attributable to the
// card-holding diners: subtotal / totalPax * eligible * rate.
//
// spec must come from models.NewDiscountSpec; eligible <= totalPax is not
// re-checked here.
func Allocate(subtotal decimal.Decimal, spec models.DiscountSpec) decimal.Decimal {
	if spec.Type == models.DiscountNone || spec.EligibleCount == 0 || spec.TotalPax == 0 {
		return decimal.Zero
	}
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	perPerson := subtotal.Div(decimal.NewFromInt(int64(spec.TotalPax)))
	base := perPerson.Mul(decimal.NewFromInt(int64(spec.EligibleCount)))
	return models.RoundMoney(base.Mul(spec.Rate))
}
