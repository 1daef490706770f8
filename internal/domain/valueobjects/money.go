// Package valueobjects holds the Money value object used on every balance
// path of the ledger. Money is a fixed-point decimal at 4 fractional digits
// (the NUMERIC(19,4) storage contract); float arithmetic is never used.
package valueobjects

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Money value carries.
const Scale = 4

// maxIntegralDigits bounds values to the NUMERIC(19,4) range [0, 10^15).
const maxIntegralDigits = 15

var maxValue = decimal.New(1, maxIntegralDigits)

// Money errors.
var (
	ErrInvalidAmount      = errors.New("invalid amount format")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrAmountOutOfRange   = errors.New("amount exceeds the representable range")
	ErrInsufficientAmount = errors.New("insufficient amount")
)

// Money is an immutable non-negative fixed-point amount. Values are
// quantized half-up to Scale on construction, so arithmetic stays closed
// at 4 fractional digits and matches what the store persists.
type Money struct {
	amount decimal.Decimal
}

// NewMoney parses a decimal string into Money.
// Rejects unparseable input, negative values, and values >= 10^15.
func NewMoney(amountStr string) (Money, error) {
	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}
	return NewMoneyFromDecimal(d)
}

// NewMoneyFromDecimal builds Money from an already-parsed decimal,
// applying the same range checks and scale-4 quantization as NewMoney.
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if d.GreaterThanOrEqual(maxValue) {
		return Money{}, ErrAmountOutOfRange
	}
	return Money{amount: d.Round(Scale)}, nil
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// MinTransferAmount is the smallest transferable amount: one minor unit
// at scale 4 (0.0001).
func MinTransferAmount() Money {
	return Money{amount: decimal.New(1, -Scale)}
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String renders the amount with exactly 4 fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// Add returns the sum. Closed at scale 4 for in-range operands.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns the difference, or ErrInsufficientAmount if the result
// would be negative.
func (m Money) Sub(other Money) (Money, error) {
	diff := m.amount.Sub(other.amount)
	if diff.IsNegative() {
		return Money{}, ErrInsufficientAmount
	}
	return Money{amount: diff}, nil
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// LessThan reports m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThanOrEqual reports m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// Equals reports exact equality of the two amounts.
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}
