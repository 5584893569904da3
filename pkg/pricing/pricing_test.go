package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocaleNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"22%", 22},
		{"abc", math.NaN()},
	}
	for _, c := range cases {
		got := ParseLocaleNumber(c.in)
		if math.IsNaN(c.want) {
			assert.True(t, math.IsNaN(got), "input %q", c.in)
			continue
		}
		assert.InDelta(t, c.want, got, 0.0001, "input %q", c.in)
	}
}

func TestParseLocaleNumber_AlreadyNumeric(t *testing.T) {
	assert.Equal(t, 42.5, ParseLocaleNumber(42.5))
}

func TestToComma99Cents_Properties(t *testing.T) {
	for _, x := range []int64{0, 1, 50, 99, 100, 199, 12345, 9999, 10000} {
		got := ToComma99Cents(x)
		assert.GreaterOrEqual(t, got, x)
		assert.Less(t, got-x, int64(100))
		assert.Equal(t, int64(99), got%100)
	}
}

func TestToComma99Cents_Idempotent(t *testing.T) {
	for _, x := range []int64{99, 199, 2999} {
		require.Equal(t, x, ToComma99Cents(x))
	}
}

func TestToComma99Cents_KnownValues(t *testing.T) {
	assert.Equal(t, int64(1099), ToComma99Cents(1000))
	assert.Equal(t, int64(1099), ToComma99Cents(1099))
	assert.Equal(t, int64(1199), ToComma99Cents(1100))
	assert.Equal(t, int64(99), ToComma99Cents(1))
}

func TestComputeLadder_CBPRoute(t *testing.T) {
	in := LadderInput{
		ListPrice:     100,
		CustBestPrice: 50,
		Surcharge:     5,
		ShippingEuros: 2,
		VATPercent:    22,
		FeeDrev:       1.0,
		FeeMkt:        1.0,
	}
	res := ComputeLadder(in)
	assert.True(t, EndsInComma99(res.PriceFinalCents))
	assert.Equal(t, int64(0), res.ListPriceWithFeeCents%100)
	assert.GreaterOrEqual(t, res.ListPriceWithFeeCents, res.PriceFinalCents-99)
}

func TestComputeLadder_LPRouteWhenNoCBP(t *testing.T) {
	in := LadderInput{
		ListPrice:     80,
		CustBestPrice: 0,
		ShippingEuros: 0,
		VATPercent:    0,
		FeeDrev:       1.0,
		FeeMkt:        1.0,
	}
	res := ComputeLadder(in)
	// base = 8000 cents, ,99-ending of 8000 is 8099
	assert.Equal(t, int64(8099), res.PriceFinalCents)
}
