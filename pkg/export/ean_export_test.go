package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeByEAN_KeepsHighestPriceOnCollision(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "EAN", "PriceFinal"},
		Rows: []map[string]string{
			{"Matnr": "M1", "EAN": "0400638133393", "PriceFinal": "1999"},
			{"Matnr": "M2", "EAN": "400638133393", "PriceFinal": "2499"}, // normalizes to same 13-digit EAN
			{"Matnr": "M3", "EAN": "not-an-ean", "PriceFinal": "500"},
		},
	}

	kept, rejected := DedupeByEAN(products)

	require.Len(t, kept, 1)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, "0400638133393", kept[0]["EAN"])
	assert.Equal(t, "M2", kept[0]["Matnr"])
	assert.Equal(t, "2499", kept[0]["PriceFinal"])
}

func TestWriteEANCSV_WritesHeaderAndRowsKeepingLeadingZeros(t *testing.T) {
	header := []string{"Matnr", "EAN"}
	rows := []map[string]string{{"Matnr": "M1", "EAN": "0400638133393"}}

	var buf bytes.Buffer
	require.NoError(t, WriteEANCSV(&buf, header, rows))
	assert.Equal(t, "Matnr,EAN\nM1,0400638133393\n", buf.String())
}
