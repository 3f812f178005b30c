// Package wire parses upstream market-API JSON payloads into the frozen
// domain.Market / domain.OrderbookSnapshot / domain.Fill value objects.
// Unknown fields are ignored (plain encoding/json decoding already does
// this); every price field, whichever of the two wire representations it
// arrives in, is normalized to the same fixed-point internal unit.
package wire

import (
	"fmt"
	"regexp"

	"github.com/aristath/marketedge/internal/money"
)

var dollarStringPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,6})?$`)

// PriceField is a wire price that may arrive as a deprecated integer-cent
// field or as the current dollar-string field. Exactly one of the two
// underlying JSON fields is expected to be populated; ParsePrice merges
// them into a single money.Amount.
type PriceField struct {
	Cents  *int64  // deprecated integer-cent field, e.g. "yes_bid"
	Dollar *string // current dollar-string field, e.g. "yes_bid_dollars"
}

// ParsePrice normalizes a PriceField to the canonical fixed-point
// representation. The dollar-string field takes precedence when both are
// present, since it carries more precision (up to six fractional digits
// versus whole cents).
func ParsePrice(f PriceField) (money.Amount, error) {
	if f.Dollar != nil && *f.Dollar != "" {
		if !dollarStringPattern.MatchString(*f.Dollar) {
			return 0, fmt.Errorf("wire: price %q does not match dollar-string pattern", *f.Dollar)
		}
		return money.FromDollarString(*f.Dollar)
	}
	if f.Cents != nil {
		return money.FromCents(*f.Cents), nil
	}
	return 0, fmt.Errorf("wire: price field carries neither cents nor dollar string")
}

// NormalizeLiquidity implements the negative-sentinel rule from §4.C: a
// negative liquidity value from upstream is a sentinel for "unknown" and
// must be normalized to nil. The second return value reports whether a
// sentinel was encountered, so callers can emit the required warning.
func NormalizeLiquidity(raw *int64) (*int64, bool) {
	if raw == nil {
		return nil, false
	}
	if *raw < 0 {
		return nil, true
	}
	v := *raw
	return &v, false
}
