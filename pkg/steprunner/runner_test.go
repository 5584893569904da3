package steprunner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nova-retail/catalogsync/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParseMergeTick_FullLifecycle(t *testing.T) {
	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	const runID = "run-lifecycle"

	material := "Matnr\tManufPartNr\tEAN\tDesc\n" +
		"M1\tMPN-1\t1112223334445\tWidget\n" +
		"M2\tMPN-2\t2223334445556\tGadget\n"
	materialSrc := fakeRangeSource{body: []byte(material)}

	deps := ParseMergeDeps{
		Store:             store,
		StockRaw:          []byte("Matnr\tStock\nM1\t5\nM2\t1\n"),
		PriceRaw:          []byte("Matnr\tListPrice\nM1\t19.99\nM2\t9.99\n"),
		MaterialSrc:       materialSrc,
		MaxFetchBytes:     1 << 20,
		MaxPartialLine:    1 << 10,
		MaxTotalChunks:    100,
		MaxTotalSizeBytes: 1 << 20,
		TickDeadline:      time.Now().Add(time.Hour),
	}

	fields := map[string]interface{}{}
	var last ParseMergeTickResult

	phases := []string{"pending", "building_stock_index", "building_price_index", "preparing_material", "in_progress", "in_progress", "finalizing"}
	for _, wantPhase := range phases {
		gotPhase, _ := fields["phase"].(string)
		if gotPhase == "" {
			gotPhase = "pending"
		}
		require.Equal(t, wantPhase, gotPhase)

		last, err = RunParseMergeTick(ctx, runID, fields, deps)
		require.NoError(t, err)
		for k, v := range last.Patch {
			fields[k] = v
		}
	}

	assert.True(t, last.Done)
	assert.Equal(t, "completed", fields["phase"])

	out, err := store.Get(ctx, "outputs/products.tsv")
	require.NoError(t, err)
	// M1 is stocked and priced, so it survives; M2's stock of 1 is below
	// the lowStock cutoff and is dropped.
	assert.Contains(t, string(out), "M1\tMPN-1\t1112223334445\tWidget")
	assert.False(t, strings.Contains(string(out), "M2\tMPN-2"))
}
