package domain

import (
	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point precision of oracle prices (Chainlink style).
const PriceDecimals = 8

// Price is an oracle price scaled by 10^8 to avoid floating point error.
// 30000.00 USD is Price(3_000_000_000_000).
type Price int64

// NewPrice converts a decimal quote into its scaled representation.
// Digits beyond the 8th decimal are truncated.
func NewPrice(d decimal.Decimal) Price {
	return Price(d.Shift(PriceDecimals).Truncate(0).IntPart())
}

// ParsePrice parses a human quote such as "30000.00".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return NewPrice(d), nil
}

// Decimal returns the unscaled value.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceDecimals)
}

// String formats the price with two decimals, as shown on round cards.
func (p Price) String() string {
	return p.Decimal().StringFixed(2)
}
