package valueobject

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places carried by the minor unit.
// The ledger books a single currency with a two-digit fraction.
const minorUnitExponent = 2

// Money is a value object representing a monetary amount in integer minor
// units (cents). Ledger arithmetic must be exact, so Money never holds a
// fraction; decimal conversions happen only at computation and display edges.
// It is immutable - all operations return new Money instances.
type Money struct {
	units int64
}

// NewMoney creates Money from an amount in minor units
func NewMoney(minorUnits int64) Money {
	return Money{units: minorUnits}
}

// NewMoneyFromDecimal creates Money from a decimal major-unit amount,
// rounding half up to the minor unit.
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{units: amount.Shift(minorUnitExponent).Round(0).IntPart()}
}

// NewMoneyFromString creates Money from a decimal string such as "10.50"
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d), nil
}

// Zero returns a zero-value Money
func Zero() Money {
	return Money{}
}

// MinorUnits returns the amount in integer minor units
func (m Money) MinorUnits() int64 {
	return m.units
}

// Decimal returns the amount as a major-unit decimal
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.units, -minorUnitExponent)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.units == 0
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.units > 0
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.units < 0
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{units: m.units + other.units}
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) Money {
	return Money{units: m.units - other.units}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{units: -m.units}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.units < 0 {
		return Money{units: -m.units}
	}
	return m
}

// ApplyRate multiplies the amount by a decimal rate (e.g. a flat VAT rate
// of 0.11), rounding half up to the minor unit.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	return NewMoneyFromDecimal(m.Decimal().Mul(rate))
}

// Equals returns true if both amounts are equal
func (m Money) Equals(other Money) bool {
	return m.units == other.units
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) bool {
	return m.units > other.units
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) bool {
	return m.units < other.units
}

// String returns the amount formatted in major units
func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExponent)
}

// Value implements driver.Valuer for database storage as integer minor units
func (m Money) Value() (driver.Value, error) {
	return m.units, nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Money) Scan(value any) error {
	if value == nil {
		m.units = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		m.units = v
	case int:
		m.units = int64(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	return nil
}
