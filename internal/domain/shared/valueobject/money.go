package valueobject

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute difference under which two monetary
// values are considered equal. Client-supplied totals within this distance of
// the server-recomputed value are accepted; anything at or beyond it is a
// consistency failure.
var Tolerance = decimal.NewFromFloat(0.01)

// Money is a value object for statement amounts. It is immutable; all
// operations return new Money instances. Amounts carry two-decimal semantics
// with round-half-away-from-zero, matching how owner statements present
// dollars to property owners. The deployment is single-currency, so Money
// carries no currency code.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromFloat creates Money from a float64 value
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// Zero returns a zero-value Money
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// AddRounded adds the other amount and re-rounds the running sum to two
// decimal places. Aggregation over many rows uses this after every addition
// so binary floating-point drift from client-sourced values never
// accumulates past a cent.
func (m Money) AddRounded(other Money) Money {
	return Money{amount: m.amount.Add(other.amount).Round(2)}
}

// Sub returns a new Money with the difference
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Neg returns a new Money with the sign reversed
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// Round2 returns a new Money rounded to two decimal places using
// round-half-away-from-zero
func (m Money) Round2() Money {
	return Money{amount: m.amount.Round(2)}
}

// Equals returns true if both amounts are numerically equal
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsClose reports whether the two amounts are within Tolerance of each
// other. This is the trust-boundary check for caller-supplied totals.
func (m Money) IsClose(other Money) bool {
	return m.amount.Sub(other.amount).Abs().LessThan(Tolerance)
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// String returns the amount with fixed two decimal places
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// Float64 returns the amount as a float64 (may lose precision)
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON renders the amount as a plain JSON number with two decimals,
// the shape the dashboard expects for every monetary field
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or numeric string
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		m.amount = decimal.Zero
		return nil
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	return nil
}

// Value implements driver.Valuer for database storage as a numeric column
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner for database retrieval. Postgres numerics
// arrive as strings; the sqlite test driver hands back float64.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}

	switch v := value.(type) {
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid decimal value: %w", err)
		}
		m.amount = amount
	case []byte:
		amount, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("invalid decimal value: %w", err)
		}
		m.amount = amount
	case float64:
		m.amount = decimal.NewFromFloat(v)
	case int64:
		m.amount = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	return nil
}
