package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType is the statutory discount category presented at the counter.
type DiscountType string

const (
	DiscountSenior DiscountType = "SENIOR"
	DiscountPWD    DiscountType = "PWD"
	DiscountNone   DiscountType = "NONE"
)

// DiscountRate is the statutory rate applied to the eligible share of the bill.
var DiscountRate = decimal.RequireFromString("0.20")

// DiscountSpec describes who at the table holds a discount card.
type DiscountSpec struct {
	Type          DiscountType    `json:"type"`
	TotalPax      int             `json:"total_pax"`
	EligibleCount int             `json:"eligible_count"`
	Rate          decimal.Decimal `json:"rate"`
}

// NewDiscountSpec validates the party composition. It is the only place the
// eligible <= total rule is enforced.
func NewDiscountSpec(kind DiscountType, totalPax, eligible int) (DiscountSpec, error) {
	switch kind {
	case DiscountSenior, DiscountPWD, DiscountNone:
	default:
		return DiscountSpec{}, NewInvalidInput("type", fmt.Sprintf("unknown discount type %q", kind))
	}
	if totalPax < 1 {
		return DiscountSpec{}, NewInvalidInput("total_pax", "must be at least 1")
	}
	if eligible < 0 {
		return DiscountSpec{}, NewInvalidInput("eligible_count", "must not be negative")
	}
	if eligible > totalPax {
		return DiscountSpec{}, NewInvalidInput("eligible_count", "must not exceed total_pax")
	}
	return DiscountSpec{
		Type:          kind,
		TotalPax:      totalPax,
		EligibleCount: eligible,
		Rate:          DiscountRate,
	}, nil
}
