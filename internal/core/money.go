// Package core provides the ledger data model and its pure projections.
//
// This file contains amount parsing and currency formatting. Amounts are
// decimal magnitudes; the sign lives in the transaction kind.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPrefix is prepended to every displayed amount.
const CurrencyPrefix = "₹ "

// maxAmountLen bounds the accepted input; longer strings are not amounts a person types.
const maxAmountLen = 32

// ParseAmount converts a user-typed amount into a non-negative decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading plus sign. Empty input, anything that is not a plain
// decimal number, and negative values return ErrInvalidAmount. Zero is a
// valid amount.
//
// Examples:
//   ParseAmount("5000")   -> 5000, nil
//   ParseAmount("12,50")  -> 12.5, nil
//   ParseAmount("abc")    -> 0, ErrInvalidAmount
//   ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimPrefix(s, "+")

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, p := range parts {
		for _, r := range p {
			if r < '0' || r > '9' {
				return decimal.Zero, ErrInvalidAmount
			}
			digits++
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s = strings.TrimSuffix(s, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount with the currency prefix and no rounding.
func FormatCurrency(d decimal.Decimal) string {
	return CurrencyPrefix + d.String()
}

// FormatSigned renders a row amount, e.g. "+ ₹ 5000" or "- ₹ 1200".
func FormatSigned(k Kind, d decimal.Decimal) string {
	return k.Sign() + " " + FormatCurrency(d)
}
