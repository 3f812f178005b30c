// Package money implements the fixed-point representation the Wire Model
// Layer normalizes all prices to: hundredths of a cent, stored as an int64.
//
// One dollar is 10_000 units; one cent is 100 units. Every price that enters
// the system — whether the wire payload carries it as a deprecated integer-cent
// field or as the current dollar string — is converted to this single
// representation before any domain code sees it.
package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Amount is a price or cash value in hundredths of a cent.
// $100.00 == Amount(1_000_000).
type Amount int64

const (
	// UnitsPerDollar is the number of Amount units in one dollar.
	UnitsPerDollar int64 = 10_000
	// UnitsPerCent is the number of Amount units in one cent.
	UnitsPerCent int64 = 100
)

// dollarPattern matches the wire format for dollar-string price fields:
// an integer part and up to six fractional digits.
var dollarPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,6})?$`)

// FromDollarString parses a wire dollar-string price field (e.g. "0.47") into
// an Amount. Returns an error if the string does not match the wire format.
func FromDollarString(s string) (Amount, error) {
	if !dollarPattern.MatchString(s) {
		return 0, fmt.Errorf("money: %q does not match dollar-string pattern", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimalDollars(d), nil
}

// FromDecimalDollars converts a decimal dollar amount into an Amount,
// rounding to the nearest unit (hundredth of a cent).
func FromDecimalDollars(d decimal.Decimal) Amount {
	scaled := d.Mul(decimal.NewFromInt(UnitsPerDollar))
	return Amount(scaled.Round(0).IntPart())
}

// FromCents converts a deprecated integer-cent wire field into an Amount.
func FromCents(cents int64) Amount {
	return Amount(cents * UnitsPerCent)
}

// FromCentsFloat converts a fractional-cent value (e.g. a midpoint) into an
// Amount, rounding to the nearest unit.
func FromCentsFloat(cents float64) Amount {
	return Amount(int64(cents*float64(UnitsPerCent) + sign(cents)*0.5))
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// Cents returns the value expressed as a (possibly fractional) number of
// cents, e.g. for use in the liquidity engine's cent-denominated math.
func (a Amount) Cents() float64 {
	return float64(a) / float64(UnitsPerCent)
}

// Dollars returns the value as a decimal.Decimal in dollars, suitable for
// display or re-serialization onto the wire.
func (a Amount) Dollars() decimal.Decimal {
	return decimal.New(int64(a), 0).Div(decimal.NewFromInt(UnitsPerDollar))
}

// DollarString renders the amount as a wire-compatible dollar string.
func (a Amount) DollarString() string {
	return a.Dollars().StringFixed(4)
}

// String implements fmt.Stringer for debug output and log fields.
func (a Amount) String() string {
	return fmt.Sprintf("$%s", a.Dollars().StringFixed(2))
}
