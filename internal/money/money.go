// Package money parses and formats euro amounts stored as integer cents.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse converts a user-entered amount into cents.
// Accepted forms: "450", "450.5", "450,50", "1.234,56", "1 234,56", "450 €".
// A comma marks the decimal separator; dots are then thousands separators.
// More than two decimals is rejected: "1.234" is ambiguous between a French
// thousands group and a sub-cent amount.
func Parse(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSuffix(clean, "€")
	clean = strings.TrimSpace(clean)

	clean = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(clean)
	if clean == "" {
		return 0, ErrInvalidAmount
	}

	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: %q has more than two decimals, use a comma for cents", ErrInvalidAmount, strings.TrimSpace(s))
	}

	return d.Mul(hundred).IntPart(), nil
}

var printer = message.NewPrinter(language.French)

// Format renders cents the French way, e.g. 45000 -> "450,00 €".
// Thousands are grouped with a plain space so the result survives PDF core fonts.
func Format(cents int64) string {
	value, _ := decimal.New(cents, -2).Float64()

	s := printer.Sprintf("%.2f", value)
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)

	return s + " €"
}

// Decimal exposes cents as a decimal amount in euros.
func Decimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
