package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"10.50", 1050, false},
		{"0", 0, false},
		{"-3.25", -325, false},
		{"1000000.00", 100000000, false},
		{"0.005", 1, false}, // rounds half up
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.MinorUnits())
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoney(1050)
	b := NewMoney(250)

	assert.Equal(t, int64(1300), a.Add(b).MinorUnits())
	assert.Equal(t, int64(800), a.Subtract(b).MinorUnits())
	assert.Equal(t, int64(-1050), a.Negate().MinorUnits())
	assert.Equal(t, int64(1050), a.Negate().Abs().MinorUnits())

	// Immutability
	assert.Equal(t, int64(1050), a.MinorUnits())
}

func TestMoney_ApplyRate(t *testing.T) {
	subtotal := NewMoney(100000000) // 1,000,000.00
	rate := decimal.NewFromFloat(0.11)

	tax := subtotal.ApplyRate(rate)
	assert.Equal(t, int64(11000000), tax.MinorUnits()) // 110,000.00
}

func TestMoney_ApplyRate_RoundsHalfUp(t *testing.T) {
	m := NewMoney(105) // 1.05
	tax := m.ApplyRate(decimal.NewFromFloat(0.1))
	// 0.105 rounds to 0.11
	assert.Equal(t, int64(11), tax.MinorUnits())
}

func TestMoney_Predicates(t *testing.T) {
	assert.True(t, Zero().IsZero())
	assert.True(t, NewMoney(1).IsPositive())
	assert.True(t, NewMoney(-1).IsNegative())
	assert.True(t, NewMoney(5).GreaterThan(NewMoney(4)))
	assert.True(t, NewMoney(4).LessThan(NewMoney(5)))
	assert.True(t, NewMoney(7).Equals(NewMoney(7)))
}

func TestMoney_DecimalConversion(t *testing.T) {
	m := NewMoney(123456)
	assert.Equal(t, "1234.56", m.Decimal().StringFixed(2))
	assert.Equal(t, "1234.56", m.String())

	back := NewMoneyFromDecimal(m.Decimal())
	assert.True(t, m.Equals(back))
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan(int64(999)))
	assert.Equal(t, int64(999), m.MinorUnits())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan("not-a-number"))
}
