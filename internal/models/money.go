package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyPlaces is the number of decimal places carried by every amount.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Currency formats amounts for operator-facing output.
type Currency struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewCurrency builds a formatter for an ISO 4217 code and a BCP 47 locale.
func NewCurrency(code, locale string) (Currency, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Currency{}, fmt.Errorf("invalid currency code %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Currency{}, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return Currency{unit: unit, printer: message.NewPrinter(tag)}, nil
}

// Code returns the ISO code, e.g. "PHP".
func (c Currency) Code() string {
	return c.unit.String()
}

// Format renders d as "PHP 1,234.50".
func (c Currency) Format(d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", c.unit, c.printer.Sprintf("%.2f", RoundMoney(d).InexactFloat64()))
}
