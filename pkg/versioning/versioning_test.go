package versioning

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nova-retail/catalogsync/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) objectstore.Store {
	t.Helper()
	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestPublish_CopiesToLatestAndVersions(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "outputs/Catalogo EAN.xlsx", strings.NewReader("ean-data")))

	now := time.Unix(1_700_000_000, 0)
	result, err := Publish(ctx, store, "outputs", []string{"Catalogo EAN.xlsx"}, now, nil)
	require.NoError(t, err)

	latest, err := store.Get(ctx, "latest/Catalogo EAN.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "ean-data", string(latest))

	versioned, err := store.Get(ctx, fmt.Sprintf("versions/%d/Catalogo EAN.xlsx", now.Unix()))
	require.NoError(t, err)
	assert.Equal(t, "ean-data", string(versioned))

	assert.Equal(t, []int64{now.Unix()}, result.Manifest["Catalogo EAN.xlsx"])
	assert.Empty(t, result.Deleted)
}

func TestApplyRetention_KeepsLast3AndRecentOnes(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	// 5 versions: the 3 newest are always kept regardless of age; of the
	// remaining 2, both are older than the 7-day window, so both are deleted.
	versions := []int64{
		now.AddDate(0, 0, -30).Unix(),
		now.AddDate(0, 0, -20).Unix(),
		now.AddDate(0, 0, -10).Unix(),
		now.AddDate(0, 0, -2).Unix(),
		now.Unix(),
	}
	for _, v := range versions {
		key := fmt.Sprintf("versions/%d/file.csv", v)
		require.NoError(t, store.Put(ctx, key, strings.NewReader("x")))
	}
	manifest := FileManifest{"file.csv": append([]int64{}, versions...)}

	result, err := ApplyRetention(ctx, store, manifest, now)
	require.NoError(t, err)

	assert.Len(t, result.Deleted, 2)
	assert.Len(t, result.Manifest["file.csv"], 3)
}

func TestDiscoverManifest_RebuildsFromObjectStoreKeys(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "versions/100/a.csv", strings.NewReader("x")))
	require.NoError(t, store.Put(ctx, "versions/200/a.csv", strings.NewReader("x")))
	require.NoError(t, store.Put(ctx, "versions/150/b.csv", strings.NewReader("x")))

	manifest, err := DiscoverManifest(ctx, store)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{100, 200}, manifest["a.csv"])
	assert.ElementsMatch(t, []int64{150}, manifest["b.csv"])
}
