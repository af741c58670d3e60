package models

import "github.com/shopspring/decimal"

// PricingMode selects how a catalog item is priced at the counter.
type PricingMode string

const (
	PricingFixed    PricingMode = "FIXED"
	PricingWeighted PricingMode = "WEIGHTED"
	PricingVariant  PricingMode = "VARIANT"
)

// Variant is one priced option of a VARIANT item, e.g. a size.
type Variant struct {
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// CatalogItem is read-only reference data owned by the catalog provider.
// For WEIGHTED items UnitPrice is the rate per kilogram.
type CatalogItem struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Category  string          `json:"category" yaml:"category"`
	Mode      PricingMode     `json:"pricing_mode" yaml:"pricing_mode"`
	UnitPrice decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	Variants  []Variant       `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// FindVariant looks up a variant by exact name.
func (c *CatalogItem) FindVariant(name string) (Variant, bool) {
	for _, v := range c.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
