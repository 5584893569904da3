package steprunner

import (
	"context"
	"testing"

	"github.com/nova-retail/catalogsync/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRangeSource struct {
	body []byte
}

func (f fakeRangeSource) Head(ctx context.Context) (objectstore.HeadResult, error) {
	return objectstore.HeadResult{TotalBytes: int64(len(f.body)), RangeCapable: true}, nil
}

func (f fakeRangeSource) GetRange(ctx context.Context, start, end int64) (objectstore.RangeResult, error) {
	if start >= int64(len(f.body)) {
		return objectstore.RangeResult{StatusCode: 416, ContentLen: int64(len(f.body))}, nil
	}
	if end >= int64(len(f.body)) {
		end = int64(len(f.body)) - 1
	}
	return objectstore.RangeResult{StatusCode: 206, Body: f.body[start : end+1], ContentLen: int64(len(f.body))}, nil
}

func testMeta() MaterialMeta {
	return MaterialMeta{
		Delimiter: '\t',
		Columns:   map[string]int{"Matnr": 0, "ManufPartNr": 1, "EAN": 2, "Desc": 3},
	}
}

func TestProcessBodyTick_EmitsRowForStockedPricedMaterial(t *testing.T) {
	src := fakeRangeSource{body: []byte("M1\tMPN-1\t1112223334445\tWidget\n")}
	meta := testMeta()
	meta.TotalBytes = int64(len(src.body))

	stockIdx := map[string]int32{"M1": 5}
	priceIdx := map[string]PriceEntry{"M1": {ListPrice: 19.99}}

	result, err := ProcessBodyTick(context.Background(), src, meta, BodyState{}, stockIdx, priceIdx, 1<<20, 1<<10, 100)
	require.NoError(t, err)

	require.Len(t, result.ChunkRows, 1)
	assert.Contains(t, result.ChunkRows[0], "M1\tMPN-1\t1112223334445\tWidget\t5\t19.99")
	assert.Equal(t, int64(1), result.State.ProductCount)
	assert.Equal(t, 1, result.State.ChunkIndex)
}

func TestProcessBodyTick_SkipsLowStockAndMissingData(t *testing.T) {
	body := []byte("M1\t\t\t\nM2\t\t\t\nM3\t\t\t\n")
	src := fakeRangeSource{body: body}
	meta := testMeta()
	meta.TotalBytes = int64(len(body))

	stockIdx := map[string]int32{"M1": 1, "M2": 5} // M1 low stock, M3 missing entirely
	priceIdx := map[string]PriceEntry{"M1": {ListPrice: 10}} // M2 has stock but no price entry

	result, err := ProcessBodyTick(context.Background(), src, meta, BodyState{}, stockIdx, priceIdx, 1<<20, 1<<10, 100)
	require.NoError(t, err)

	assert.Empty(t, result.ChunkRows)
	assert.Equal(t, int64(1), result.State.Skipped["lowStock"])
	assert.Equal(t, int64(1), result.State.Skipped["noPrice"])
	assert.Equal(t, int64(1), result.State.Skipped["noStock"])
}

func TestProcessBodyTick_ReachingEOFFlushesFinalPartialLine(t *testing.T) {
	src := fakeRangeSource{body: []byte("")}
	meta := testMeta()
	meta.TotalBytes = 0

	state := BodyState{CursorPos: 0, PartialLine: "leftover"}
	result, err := ProcessBodyTick(context.Background(), src, meta, state, nil, nil, 1<<20, 1<<10, 100)
	require.NoError(t, err)

	assert.True(t, result.Done)
	assert.Equal(t, "", result.State.PartialLine)
}

func TestProcessBodyTick_ReachingEOFRoutesValidFinalPartialThroughProcessMaterialLine(t *testing.T) {
	src := fakeRangeSource{body: []byte("")}
	meta := testMeta()
	meta.TotalBytes = 0

	stockIdx := map[string]int32{"M1": 5}
	priceIdx := map[string]PriceEntry{"M1": {ListPrice: 19.99}}

	state := BodyState{CursorPos: 0, PartialLine: "M1\tMPN-1\t1112223334445\tWidget"}
	result, err := ProcessBodyTick(context.Background(), src, meta, state, stockIdx, priceIdx, 1<<20, 1<<10, 100)
	require.NoError(t, err)

	assert.True(t, result.Done)
	assert.Equal(t, "", result.State.PartialLine)
	require.Len(t, result.ChunkRows, 1)
	assert.Contains(t, result.ChunkRows[0], "M1\tMPN-1\t1112223334445\tWidget\t5\t19.99")
	assert.Equal(t, int64(1), result.State.ProductCount)
	assert.Equal(t, 1, result.State.ChunkIndex)
}

func TestProcessBodyTick_ReachingEOFWithUnresolvablePartialRecordsSkipNotRawRow(t *testing.T) {
	src := fakeRangeSource{body: []byte("")}
	meta := testMeta()
	meta.TotalBytes = 0

	state := BodyState{CursorPos: 0, PartialLine: "leftover"}
	result, err := ProcessBodyTick(context.Background(), src, meta, state, nil, nil, 1<<20, 1<<10, 100)
	require.NoError(t, err)

	assert.True(t, result.Done)
	assert.Empty(t, result.ChunkRows)
	assert.Equal(t, int64(1), result.State.Skipped["noStock"])
	assert.Equal(t, int64(0), result.State.ProductCount)
}

func TestProcessBodyTick_PartialLineTooLargeFails(t *testing.T) {
	src := fakeRangeSource{body: []byte("this-line-has-no-newline-and-is-too-long")}
	meta := testMeta()
	meta.TotalBytes = int64(len(src.body))

	_, err := ProcessBodyTick(context.Background(), src, meta, BodyState{}, nil, nil, 1<<20, 4, 100)
	assert.Error(t, err)
}
