package export

import (
	"context"
	"testing"

	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPricing_AddsPriceColumns(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "LP", "CBP", "Sur"},
		Rows: []map[string]string{
			{"Matnr": "M1", "LP": "100,00", "CBP": "0", "Sur": "0"},
			{"Matnr": "M2", "LP": "", "CBP": "80,00", "Sur": "2,50"},
		},
	}
	fees, err := pricing.DefaultFeeConfig().For("amazon")
	require.NoError(t, err)

	out := RunPricing(context.Background(), products, fees)

	assert.Contains(t, out.Header, "PriceFinal")
	assert.Contains(t, out.Header, "ListPriceWithFee")
	assert.NotEmpty(t, out.Rows[0]["PriceFinal"])
	assert.NotEmpty(t, out.Rows[1]["PriceFinal"])
}

func TestRunPricing_BlankNumericFieldsTreatedAsZero(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "LP", "CBP", "Sur"},
		Rows:   []map[string]string{{"Matnr": "M1", "LP": "", "CBP": "", "Sur": ""}},
	}
	fees, err := pricing.DefaultFeeConfig().For("eprice")
	require.NoError(t, err)

	out := RunPricing(context.Background(), products, fees)
	// base euros is 0, so the ladder's ",99 ending" rule rounds up to 99 cents.
	assert.Equal(t, "99", out.Rows[0]["PriceFinal"])
	assert.Equal(t, "0", out.Rows[0]["ListPriceWithFee"])
}
