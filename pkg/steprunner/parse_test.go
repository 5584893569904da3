package steprunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDelimiter_PicksHighestCount(t *testing.T) {
	assert.Equal(t, byte('\t'), DetectDelimiter("Matnr\tStock\tListPrice"))
	assert.Equal(t, byte(';'), DetectDelimiter("Matnr;Stock;ListPrice"))
	assert.Equal(t, byte(','), DetectDelimiter("Matnr,Stock,ListPrice"))
}

func TestResolveColumns_MatchesAliasesCaseInsensitively(t *testing.T) {
	cols := ResolveColumns(SplitHeader("MATNR\tQty\tLP\tCBP", '\t'))
	assert.Equal(t, 0, cols["Matnr"])
	assert.Equal(t, 1, cols["Stock"])
	assert.Equal(t, 2, cols["ListPrice"])
	assert.Equal(t, 3, cols["CustBestPrice"])
	_, hasDesc := cols["Desc"]
	assert.False(t, hasDesc)
}

func TestSplitHeader_TrimsTrailingCR(t *testing.T) {
	fields := SplitHeader("Matnr\tStock\r\n", '\t')
	assert.Equal(t, []string{"Matnr", "Stock"}, fields)
}
