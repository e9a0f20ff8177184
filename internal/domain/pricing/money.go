package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMinor rounds to the currency's minor-unit precision. Prices are never
// negative here, so decimal's round-half-away-from-zero is exactly
// round-half-up. Every price computation in the module goes through this one
// function so repeated re-derivation of the same price is reproducible.
func RoundMinor(d decimal.Decimal, minorUnits int32) decimal.Decimal {
	return d.Round(minorUnits)
}

// MinorUnit returns the smallest representable amount at the given
// precision, used as the drift comparison tolerance.
func MinorUnit(minorUnits int32) decimal.Decimal {
	return decimal.New(1, -minorUnits)
}

// ApplyDiscount reduces a regular price by a percent or fixed discount,
// floors the result at zero, and rounds to minor units.
func ApplyDiscount(regular, discount decimal.Decimal, percent bool, minorUnits int32) decimal.Decimal {
	var out decimal.Decimal
	if percent {
		out = regular.Mul(hundred.Sub(discount)).Div(hundred)
	} else {
		out = regular.Sub(discount)
	}
	if out.IsNegative() {
		out = decimal.Zero
	}
	return RoundMinor(out, minorUnits)
}
