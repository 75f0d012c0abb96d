// Package amount parses user supplied decimal amounts and converts them to on-chain base units.
package amount

import (
	"fmt"
	"math"
	"strings"

	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/shopspring/decimal"
)

// SOLDecimals is the number of decimal places in one SOL (1 SOL = 10^9 lamports).
const SOLDecimals = 9

// maxInputLength bounds what we are willing to hand to the decimal parser.
const maxInputLength = 64

var maxBaseUnits = decimal.NewFromUint64(math.MaxUint64)

// Parse parses a plain decimal string ("1", "0.05", ".5") into a positive amount.
// Exponent notation, signs other than none and non-positive values are rejected with
// txbuilder.ErrInvalidAmount.
func Parse(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", txbuilder.ErrInvalidAmount)
	}
	if len(text) > maxInputLength {
		return decimal.Zero, fmt.Errorf("%w: amount is too long", txbuilder.ErrInvalidAmount)
	}
	if strings.ContainsAny(text, "eE+-") {
		return decimal.Zero, fmt.Errorf("%w: %q is not a plain positive decimal", txbuilder.ErrInvalidAmount, text)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", txbuilder.ErrInvalidAmount, text, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", txbuilder.ErrInvalidAmount)
	}
	return d, nil
}

// ToBaseUnits converts a UI amount to integer base units for a token with the given
// number of decimals. Amounts finer than one base unit, or larger than a uint64, are
// rejected with txbuilder.ErrInvalidAmount rather than rounded.
func ToBaseUnits(text string, decimals uint8) (uint64, error) {
	d, err := Parse(text)
	if err != nil {
		return 0, err
	}
	return DecimalToBaseUnits(d, decimals)
}

// DecimalToBaseUnits is ToBaseUnits for an already parsed amount.
func DecimalToBaseUnits(d decimal.Decimal, decimals uint8) (uint64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be greater than zero", txbuilder.ErrInvalidAmount)
	}
	units := d.Shift(int32(decimals))
	if !units.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", txbuilder.ErrInvalidAmount, d, decimals)
	}
	if units.GreaterThan(maxBaseUnits) {
		return 0, fmt.Errorf("%w: %s is too large", txbuilder.ErrInvalidAmount, d)
	}
	return units.BigInt().Uint64(), nil
}

// SOLToLamports converts a SOL amount such as "0.05" to lamports.
func SOLToLamports(text string) (uint64, error) {
	return ToBaseUnits(text, SOLDecimals)
}

// FromBaseUnits converts base units back to a UI amount.
func FromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-int32(decimals))
}

// ParseList parses a comma separated preset list such as "1,5,10".
// Every entry must be a valid positive amount; order is preserved and blanks are skipped.
func ParseList(csv string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
