// Package finutil holds the monetary and calendar helpers shared by every rule set.
package finutil

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxNumeric15_2 is the largest value a NUMERIC(15,2) column can hold.
var MaxNumeric15_2 = decimal.RequireFromString("9999999999999.99")

// Quantize rounds v to cents, half away from zero.
func Quantize(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// SumsMatchLimit reports whether sum fits under limit once both are quantized.
// A sum equal to the limit passes.
func SumsMatchLimit(sum, limit decimal.Decimal) bool {
	return Quantize(sum).LessThanOrEqual(Quantize(limit))
}

// Sum adds values without any rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ParseAmount parses an amount written either as "1234.56" or in the
// Brazilian "1.234,56" form used by the transparency portal exports.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	clean = strings.TrimPrefix(clean, "R$")
	clean = strings.TrimSpace(clean)
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
