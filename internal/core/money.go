// Package core provides the expense domain model.
//
// This file contains parsing of user-entered amounts and the conversions
// between integer cents and their decimal representation.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer cents.
type Money struct {
	Cents int64
}

// maxCents keeps sums of a few million records inside int64.
const maxCents = int64(1) << 53

var hundred = decimal.NewFromInt(100)

// ParseAmount converts user-entered text to Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. The
// value is rounded half-up to cents. Anything that is not a strictly
// positive number after rounding, including non-numeric text, returns
// ErrAmountNotPositive.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("0.001")  -> ErrAmountNotPositive
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, ErrAmountNotPositive
	}
	cents, err := toCents(s)
	if err != nil || cents <= 0 {
		return Money{}, ErrAmountNotPositive
	}
	return Money{Cents: cents}, nil
}

// Bounds on the decimal form checked before any arithmetic. Rescaling a
// value with a huge exponent allocates 10^exp.
const (
	maxExponent = 16
	minExponent = -20
	maxDigits   = 40
)

var errAmountRange = errors.New("amount out of range")

// toCents rounds s half-up to cents. The result may be zero or negative.
func toCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if e := d.Exponent(); e > maxExponent || e < minExponent {
		return 0, errAmountRange
	}
	if len(d.Coefficient().String()) > maxDigits {
		return 0, errAmountRange
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, errAmountRange
	}
	return cents.IntPart(), nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrAmountNotPositive
	}
	return nil
}

// Add returns the sum of m and o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. It does not
// validate the sign; use Validate for that.
func (m *Money) UnmarshalJSON(b []byte) error {
	cents, err := toCents(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	m.Cents = cents
	return nil
}
