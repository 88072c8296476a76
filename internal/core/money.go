// Package core provides money parsing and handling utilities.
//
// Amounts are typed by the user as a run of digits where the last two digits
// are always the fractional part, the way a currency input mask works:
// typing "1", "12", "123" shows "0,01", "0,12", "1,23". Display uses the
// pt-BR convention (dot thousands separator, comma decimal separator).
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount converts masked user input into a decimal amount.
//
// Every non-digit is ignored except a leading minus sign. The digits are read
// as cents, so separators typed by the user do not matter.
//
// Examples:
//
//	ParseAmount("1.234,50") -> 1234.5
//	ParseAmount("123450")   -> 1234.5
//	ParseAmount("-87,30")   -> -87.3
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	cents, err := decimal.NewFromString(digits.String())
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	amount := cents.Div(hundred)
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// FormatAmount renders an amount as "1.234,50", keeping the sign.
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// FormatCurrency renders an amount in BRL, e.g. "R$ 1.234,50" or "-R$ 10,00".
func FormatCurrency(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-R$ " + FormatAmount(d.Abs())
	}
	return "R$ " + FormatAmount(d)
}

// SignedAmount applies the sign implied by kind to an amount typed as a
// magnitude. Expenses are stored negative.
func SignedAmount(amount decimal.Decimal, kind Kind) decimal.Decimal {
	amount = amount.Abs()
	if kind == KindExpense {
		return amount.Neg()
	}
	return amount
}
