// Package core holds the budget domain: users, monthly budgets, categories
// and entries, plus the pure functions that keep their totals consistent.
//
// Amounts are kept as integer cents so that sums are exact. Decimal input
// from forms is parsed with shopspring/decimal.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents. Negative values are allowed (refunds).
type Money struct {
	Cents int64
}

// MaxAmount is the largest absolute amount, in currency units, a single
// value may carry.
const MaxAmount = 1_000_000_000_000

var (
	maxAmount = decimal.NewFromInt(MaxAmount)
	// maxStored bounds decoded documents, whose totals may exceed MaxAmount.
	maxStored = decimal.NewFromInt(1<<63 - 1).Div(decimal.NewFromInt(100)).Floor()
)

// ParseDecimalToCents converts a decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Signed values are accepted.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("-3") -> -300, nil
//
// Amounts beyond MaxAmount are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	return parseCents(s, maxAmount)
}

func parseCents(s string, limit decimal.Decimal) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Abs().GreaterThan(limit) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

// ParseMoney is ParseDecimalToCents wrapped in a Money.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// addChecked is Add that reports false instead of wrapping around.
func (m Money) addChecked(o Money) (Money, bool) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, false
	}
	return Money{Cents: sum}, true
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "1200.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a plain JSON number in currency units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" || raw == "" {
		m.Cents = 0
		return nil
	}
	cents, err := parseCents(raw, maxStored)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
