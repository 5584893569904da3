package steprunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildStockIndex_ParsesAndWarnsOnBadValues(t *testing.T) {
	raw := []byte("Matnr\tStock\nM1\t5\nM2\tnot-a-number\nM3\t0\n")
	index, warnings := BuildStockIndex(raw)

	assert.Equal(t, int32(5), index["M1"])
	assert.Equal(t, int32(0), index["M2"])
	assert.Equal(t, int32(0), index["M3"])
	assert.Equal(t, 1, warnings)
}

func TestBuildStockIndex_MissingRequiredColumnsReturnsEmpty(t *testing.T) {
	raw := []byte("Foo\tBar\n1\t2\n")
	index, warnings := BuildStockIndex(raw)
	assert.Empty(t, index)
	assert.Equal(t, 0, warnings)
}

func TestBuildPriceIndex_ParsesAllThreeMoneyColumns(t *testing.T) {
	raw := []byte("Matnr\tListPrice\tCustBestPrice\tSurcharge\nM1\t100,00\t80,00\t2,50\nM2\t50,00\t\t\n")
	index := BuildPriceIndex(raw)

	assert.Equal(t, 100.0, index["M1"].ListPrice)
	assert.Equal(t, 80.0, index["M1"].CustBestPrice)
	assert.Equal(t, 2.5, index["M1"].Surcharge)
	assert.Equal(t, 50.0, index["M2"].ListPrice)
	assert.Equal(t, 0.0, index["M2"].CustBestPrice)
}
