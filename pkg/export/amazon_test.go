package export

import (
	"bytes"
	"testing"

	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaworldFees(t *testing.T) pricing.MarketplaceFees {
	t.Helper()
	fees, err := pricing.DefaultFeeConfig().For("mediaworld")
	require.NoError(t, err)
	return fees
}

// noFeeMktMultiplier fixes FeeMkt at 1 so BuildAmazonRows skips the
// re-ladder step and filters strictly on the PriceFinal column already
// carried on each row.
func noFeeMktMultiplier() pricing.MarketplaceFees {
	return pricing.MarketplaceFees{ShippingEuros: 0, VATPercent: 22, FeeDrev: 1, FeeMkt: 1, ItPrepDays: 3, EuPrepDays: 0, IncludeEU: false}
}

func TestBuildAmazonRows_FiltersBadEANEmptySKULowStockAndNonComma99(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "EAN", "Stock", "PriceFinal"},
		Rows: []map[string]string{
			{"Matnr": "M1", "EAN": "0400638133393", "Stock": "5", "PriceFinal": "1999"},
			{"Matnr": "M2", "EAN": "not-an-ean", "Stock": "5", "PriceFinal": "1999"}, // bad EAN
			{"Matnr": "", "EAN": "0400638133394", "Stock": "5", "PriceFinal": "1999"}, // empty SKU
			{"Matnr": "M4", "EAN": "0400638133395", "Stock": "1", "PriceFinal": "1999"}, // qty<2, no EU fallback
			{"Matnr": "M5", "EAN": "0400638133396", "Stock": "5", "PriceFinal": "2000"}, // not ,99-ending
		},
	}
	fees := noFeeMktMultiplier()

	rows, err := BuildAmazonRows(products, fees, nil)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "M1", rows[0].SKU)
	assert.Equal(t, int64(1999), rows[0].PriceCents)
	assert.Equal(t, 5, rows[0].Quantity)
	assert.Equal(t, fees.ItPrepDays, rows[0].HandlingDays)
	assert.Equal(t, "MFN", rows[0].FulfillmentChan)
}

func TestBuildAmazonRows_ReappliesFeeMktAndForcesComma99(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "EAN", "Stock", "PriceFinal"},
		Rows:   []map[string]string{{"Matnr": "M1", "EAN": "0400638133393", "Stock": "5", "PriceFinal": "1999"}},
	}
	fees := mediaworldFees(t) // FeeMkt 1.12, IncludeEU false

	rows, err := BuildAmazonRows(products, fees, nil)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(2299), rows[0].PriceCents)
	assert.True(t, pricing.EndsInComma99(rows[0].PriceCents))
}

func TestWriteAmazonPriceInventoryTXT(t *testing.T) {
	rows := []AmazonRow{{SKU: "M1", PriceCents: 1999, Quantity: 5, FulfillmentChan: "MFN", HandlingDays: 3}}
	var buf bytes.Buffer
	require.NoError(t, WriteAmazonPriceInventoryTXT(&buf, rows))
	assert.Contains(t, buf.String(), "M1\t19.99\t\t\t5\tMFN\t3\n")
}

func TestCheckAmazonCoherence(t *testing.T) {
	a := []AmazonRow{{SKU: "M1", PriceCents: 1999, Quantity: 5, HandlingDays: 3}}
	b := []AmazonRow{{SKU: "M1", PriceCents: 1999, Quantity: 5, HandlingDays: 3}}
	assert.NoError(t, CheckAmazonCoherence(a, b))

	diverged := []AmazonRow{{SKU: "M1", PriceCents: 2999, Quantity: 5, HandlingDays: 3}}
	assert.Error(t, CheckAmazonCoherence(a, diverged))

	assert.Error(t, CheckAmazonCoherence(a, nil))
}
