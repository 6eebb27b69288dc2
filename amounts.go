package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts move through the signing and broadcast path as integers in the
// asset's smallest unit. Scaling to and from human-readable units happens
// only here, at the display and input boundaries.

// ConvertToBaseUnit parses a human-readable decimal amount ("1", "0.5") and
// returns the equivalent smallest-unit integer string for an asset with the
// given number of decimals.
func ConvertToBaseUnit(amount string, decimals int32) (string, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return "", ValidationErrorf("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return "", ValidationErrorf("invalid amount %q", amount)
	}
	if d.Sign() < 0 {
		return "", ValidationErrorf("amount cannot be negative")
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return "", ValidationErrorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt().String(), nil
}

// FormatBaseUnit renders a smallest-unit integer as a human-readable decimal
// string, trimming trailing zeros ("1500000" at 6 decimals -> "1.5").
func FormatBaseUnit(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ParseBaseUnit validates a smallest-unit integer string and returns it as a
// big integer.
func ParseBaseUnit(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, ValidationErrorf("amount is required")
	}
	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, ValidationErrorf("invalid base-unit amount %q", value)
	}
	if n.Sign() < 0 {
		return nil, ValidationErrorf("amount cannot be negative")
	}
	return n, nil
}

// baseUnitToUint64 narrows a smallest-unit amount to the wire's u64 range.
func baseUnitToUint64(value *big.Int) (uint64, error) {
	if !value.IsUint64() {
		return 0, ValidationErrorf("amount %s exceeds the representable range", value.String())
	}
	return value.Uint64(), nil
}

// formatAmountWithSymbol is the display form used in rejection messages,
// e.g. "1.5 STX".
func formatAmountWithSymbol(value *big.Int, decimals int32, symbol string) string {
	return fmt.Sprintf("%s %s", FormatBaseUnit(value, decimals), symbol)
}
