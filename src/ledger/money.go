package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToCents converts a currency-unit amount to minor units, rounding half away
// from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units to a currency-unit amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// ParseCents parses a currency-unit string such as "1.00".
func ParseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return ToCents(d), nil
}
