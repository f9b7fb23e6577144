// Package money converts between stored minor units (paise) and displayed
// major units (rupees), and formats amounts for people.
package money

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultLocale   = "en-IN"
	DefaultCurrency = "INR"
)

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit amount to integer minor units, rounding half
// away from zero. Non-finite input converts to 0.
func ToMinor(amount float64) int64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// ToMajor converts integer minor units back to a major-unit amount.
func ToMajor(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}

// Round rounds v to places decimals, half away from zero.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Format renders amount with the locale's digit grouping and the currency's
// symbol, e.g. Format(1234.5, "en-IN", "INR") -> "₹1,234.50".
// Non-finite amounts render as zero. Unknown locales fall back to English and
// unknown currency codes are printed as-is in place of a symbol.
func Format(amount float64, locale, currencyCode string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)

	symbol := currencyCode
	if unit, err := currency.ParseISO(currencyCode); err == nil {
		symbol = p.Sprint(currency.NarrowSymbol(unit))
	}

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + symbol + p.Sprint(number.Decimal(amount, number.Scale(2)))
}
