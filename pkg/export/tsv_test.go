package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteTSV_RoundTrip(t *testing.T) {
	raw := "Matnr\tMPN\tEAN\nM1\tMPN-1\t1112223334445\nM2\tMPN-2\t\n"
	table, err := ReadTSV(bytes.NewReader([]byte(raw)))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "M1", table.Rows[0]["Matnr"])
	assert.Equal(t, "1112223334445", table.Rows[0]["EAN"])
	assert.Equal(t, "", table.Rows[1]["EAN"])

	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, table))
	assert.Equal(t, raw, buf.String())
}

func TestWriteTSV_CarriesExtraColumnsNotInHeader(t *testing.T) {
	table := Table{
		Header: []string{"Matnr"},
		Rows:   []map[string]string{{"Matnr": "M1", "PriceFinal": "1999"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, table))
	assert.Equal(t, "Matnr\tPriceFinal\nM1\t1999\n", buf.String())
}

func TestLoadMappingEntries(t *testing.T) {
	table := Table{
		Header: []string{"mpn", "ean", "matnr"},
		Rows:   []map[string]string{{"mpn": "MPN-1", "ean": "1112223334445", "matnr": "M1"}},
	}
	entries := LoadMappingEntries(table)
	assert.Equal(t, []MappingEntry{{MPN: "MPN-1", EAN: "1112223334445", Matnr: "M1"}}, entries)
}

func TestLoadOverrides(t *testing.T) {
	table := Table{
		Header: []string{"matnr", "desc", "stock", "price"},
		Rows:   []map[string]string{{"matnr": "M1", "desc": "Widget", "stock": "5", "price": "1999"}},
	}
	overrides := LoadOverrides(table)
	assert.Equal(t, []Override{{Matnr: "M1", Desc: "Widget", Stock: "5", Price: "1999"}}, overrides)
}
