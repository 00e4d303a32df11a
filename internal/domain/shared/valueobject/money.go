package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is an immutable single-currency amount held as a fixed-point
// decimal with two fractional digits. Every constructor and arithmetic
// result is rounded half away from zero to MoneyScale.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount.Round(MoneyScale)}
}

// NewMoneyFromString parses an amount such as "120.50"
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewMoney(d), nil
}

// NewMoneyFromFloat creates Money from a float64 value
func NewMoneyFromFloat(amount float64) Money {
	return NewMoney(decimal.NewFromFloat(amount))
}

// NewMoneyFromInt creates Money from a whole-unit amount
func NewMoneyFromInt(amount int64) Money {
	return NewMoney(decimal.NewFromInt(amount))
}

// NewMoneyFromCents creates Money from minor units
func NewMoneyFromCents(cents int64) Money {
	return NewMoney(decimal.New(cents, -MoneyScale))
}

// MustMoney parses an amount and panics on malformed input. Intended for
// constants and tests.
func MustMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Sum adds all amounts
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.amount)
	}
	return NewMoney(total)
}

func (m Money) Decimal() decimal.Decimal { return m.amount }
func (m Money) IsZero() bool             { return m.amount.IsZero() }
func (m Money) IsPositive() bool         { return m.amount.IsPositive() }
func (m Money) IsNegative() bool         { return m.amount.IsNegative() }

// Add returns m + other
func (m Money) Add(other Money) Money {
	return NewMoney(m.amount.Add(other.amount))
}

// Subtract returns m - other, which may be negative
func (m Money) Subtract(other Money) Money {
	return NewMoney(m.amount.Sub(other.amount))
}

// FloorZero returns m, or zero when m is negative
func (m Money) FloorZero() Money {
	if m.amount.IsNegative() {
		return Zero()
	}
	return m
}

// Percentage returns round(m * percent / 100, 2)
func (m Money) Percentage(percent decimal.Decimal) Money {
	return NewMoney(m.amount.Mul(percent).Div(hundred))
}

// Cents returns the amount in minor units
func (m Money) Cents() int64 {
	return m.amount.Shift(MoneyScale).IntPart()
}

// Equals compares amounts exactly
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

func (m Money) GreaterThan(other Money) bool        { return m.amount.GreaterThan(other.amount) }
func (m Money) GreaterThanOrEqual(other Money) bool { return m.amount.GreaterThanOrEqual(other.amount) }
func (m Money) LessThan(other Money) bool           { return m.amount.LessThan(other.amount) }

// String formats the amount with two fractional digits
func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale)
}

// Float64 returns the amount as float64. Use only for display or metrics.
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON encodes the amount as a fixed two-digit string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid money value: %s", string(data))
		}
		s = n.String()
	}
	parsed, err := NewMoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = NewMoney(d)
	return nil
}
