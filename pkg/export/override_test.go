package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunOverrideProducts(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "Desc", "Stock", "PriceFinal"},
		Rows: []map[string]string{
			{"Matnr": "M1", "Desc": "Old desc", "Stock": "3", "PriceFinal": "1999"},
			{"Matnr": "M2", "Desc": "Untouched", "Stock": "1", "PriceFinal": "500"},
			{"Matnr": "M9", "Desc": "No such override", "Stock": "0", "PriceFinal": "100"},
		},
	}
	overrides := []Override{
		{Matnr: "M1", Desc: "New desc", Stock: "", Price: "2499"}, // empty Stock left alone
	}

	out, applied := RunOverrideProducts(context.Background(), products, overrides)

	assert.Equal(t, 1, applied)
	assert.Equal(t, "New desc", out.Rows[0]["Desc"])
	assert.Equal(t, "3", out.Rows[0]["Stock"]) // untouched, override left it blank
	assert.Equal(t, "2499", out.Rows[0]["PriceFinal"])
	assert.Equal(t, "Untouched", out.Rows[1]["Desc"])
	assert.Equal(t, "No such override", out.Rows[2]["Desc"])
}

func TestRunOverrideProducts_NoOverridesIsNoOp(t *testing.T) {
	products := Table{
		Header: []string{"Matnr", "Desc"},
		Rows:   []map[string]string{{"Matnr": "M1", "Desc": "Widget"}},
	}
	out, applied := RunOverrideProducts(context.Background(), products, nil)
	assert.Equal(t, 0, applied)
	assert.Equal(t, "Widget", out.Rows[0]["Desc"])
}
