package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("rounds half away from zero to two places", func(t *testing.T) {
		assert.Equal(t, "10.01", MustMoney("10.005").String())
		assert.Equal(t, "10.00", MustMoney("10.004").String())
		assert.Equal(t, "-10.01", MustMoney("-10.005").String())
	})

	t.Run("rejects malformed strings", func(t *testing.T) {
		_, err := NewMoneyFromString("ten")
		require.Error(t, err)
	})

	t.Run("constructs from cents", func(t *testing.T) {
		assert.True(t, NewMoneyFromCents(12345).Equals(MustMoney("123.45")))
		assert.Equal(t, int64(12345), MustMoney("123.45").Cents())
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	t.Run("no floating point drift", func(t *testing.T) {
		total := Zero()
		for i := 0; i < 10; i++ {
			total = total.Add(MustMoney("0.10"))
		}
		assert.True(t, total.Equals(NewMoneyFromInt(1)))
	})

	t.Run("subtract may go negative and floor clamps it", func(t *testing.T) {
		diff := MustMoney("100").Subtract(MustMoney("130"))
		assert.True(t, diff.IsNegative())
		assert.True(t, diff.FloorZero().IsZero())
		assert.Equal(t, "40.00", MustMoney("100").Subtract(MustMoney("60")).FloorZero().String())
	})

	t.Run("sum", func(t *testing.T) {
		assert.Equal(t, "50.00", Sum(MustMoney("30"), MustMoney("20")).String())
		assert.True(t, Sum().IsZero())
	})

	t.Run("percentage rounds to cents", func(t *testing.T) {
		assert.Equal(t, "10.00", MustMoney("100").Percentage(decimal.NewFromInt(10)).String())
		assert.Equal(t, "12.35", MustMoney("123.45").Percentage(decimal.NewFromInt(10)).String())
		assert.Equal(t, "1.67", MustMoney("33.33").Percentage(decimal.NewFromInt(5)).String())
	})

	t.Run("comparisons", func(t *testing.T) {
		a, b := MustMoney("10"), MustMoney("10.00")
		assert.True(t, a.Equals(b))
		assert.True(t, a.GreaterThanOrEqual(b))
		assert.False(t, a.GreaterThan(b))
		assert.True(t, MustMoney("9.99").LessThan(a))
	})
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(MustMoney("60"))
	require.NoError(t, err)
	assert.Equal(t, `"60.00"`, string(data))

	var fromString, fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`"40.5"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`40.5`), &fromNumber))
	assert.True(t, fromString.Equals(fromNumber))

	var bad Money
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("19.99"))
	assert.Equal(t, "19.99", m.String())

	require.NoError(t, m.Scan(float64(20)))
	assert.Equal(t, "20.00", m.String())

	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "20.00", v)
}
