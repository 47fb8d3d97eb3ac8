/*
Package generic provides the money and date primitives the retention engine
is built on.

PURPOSE:
  Amounts and percentages arrive from free-form entry screens. They may be
  empty, contain thousands separators, or not be numbers at all. The engine
  treats all of those as zero instead of failing, so a half-typed form never
  breaks a live calculation. This file holds that permissive parsing policy
  and the decimal helpers shared by every calculator.

KEY CONCEPTS IN THIS FILE (types.go):
  - ParseAmount:  any caller input -> decimal.Decimal (zero on garbage)
  - FlexAmount:   JSON/YAML value that decodes with the same permissive rules
  - Round2:       money rounding to 2 decimal places
  - PercentOf:    amount x percentage / 100

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Permissive input: parsing never returns an error
  3. Strict validation lives elsewhere (retention/validation.go)

SEE ALSO:
  - time.go: TimePoint date arithmetic
  - format.go: display formatting
*/
package generic

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Hundred is the percentage divisor.
var Hundred = decimal.NewFromInt(100)

// =============================================================================
// PERMISSIVE PARSING
// =============================================================================

// MustParseDecimal parses s, returning zero when s is not a number.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmount converts caller input into a decimal.
// nil, empty strings, non-numeric strings, NaN and infinities become zero.
// Strings may carry thousands separators and surrounding whitespace.
func ParseAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case FlexAmount:
		return x.Decimal
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		return MustParseDecimal(s)
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt32(x)
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return decimal.NewFromUint64(uint64(x))
	case uint64:
		return decimal.NewFromUint64(x)
	default:
		return decimal.Zero
	}
}

// ParsePercentage applies the same rules as ParseAmount.
func ParsePercentage(v any) decimal.Decimal { return ParseAmount(v) }

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// =============================================================================
// ARITHMETIC HELPERS
// =============================================================================

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// PercentOf returns amount x pct / 100, unrounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// FLEX AMOUNT - JSON/YAML decoding with the permissive policy
// =============================================================================

// FlexAmount decodes from a JSON number, a numeric string, null, or anything
// else (which becomes zero). It encodes as a decimal string.
type FlexAmount struct {
	decimal.Decimal
}

// NewFlexAmount wraps d.
func NewFlexAmount(d decimal.Decimal) FlexAmount { return FlexAmount{Decimal: d} }

// UnmarshalJSON never fails.
func (f *FlexAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f.Decimal = ParseAmount(s)
	return nil
}

// UnmarshalYAML never fails either; only scalar nodes carry a value.
func (f *FlexAmount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		f.Decimal = decimal.Zero
		return nil
	}
	f.Decimal = ParseAmount(node.Value)
	return nil
}

// MarshalYAML writes the plain decimal string.
func (f FlexAmount) MarshalYAML() (any, error) {
	return f.Decimal.String(), nil
}
