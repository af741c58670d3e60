package models

import "github.com/shopspring/decimal"

// CartLine is one priced row of the order in progress.
//
// UnitPrice is captured when the line is added so later catalog edits cannot
// change an open order. For WEIGHTED lines UnitPrice is the rate per kg,
// Quantity is always 1 and LineTotal is the weighed price.
type CartLine struct {
	ID        string           `json:"id"`
	ItemID    string           `json:"item_id"`
	Name      string           `json:"name"`
	Mode      PricingMode      `json:"pricing_mode"`
	Quantity  int              `json:"quantity"`
	WeightKg  *decimal.Decimal `json:"weight_kg,omitempty"`
	Variant   string           `json:"variant,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

// Mergeable reports whether re-adding the same selection should bump this
// line's quantity instead of creating a new line.
func (l *CartLine) Mergeable(itemID, variant string) bool {
	if l.Mode == PricingWeighted {
		return false
	}
	return l.ItemID == itemID && l.Variant == variant
}
