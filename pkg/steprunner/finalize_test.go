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

func TestFinalizeTick_ConcatenatesChunksAndWritesOutput(t *testing.T) {
	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, chunkKey("run-1", 0), strings.NewReader("M1\tMPN-1\t\t\t5\t1\t0\t0\n")))
	require.NoError(t, store.Put(ctx, chunkKey("run-1", 1), strings.NewReader("M2\tMPN-2\t\t\t3\t2\t0\t0\n")))

	result, err := FinalizeTick(ctx, store, "run-1", 2, 0, time.Now().Add(time.Hour), 1<<20)
	require.NoError(t, err)
	assert.True(t, result.Done)

	out, err := store.Get(ctx, "outputs/products.tsv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), outputHeader))
	assert.Contains(t, string(out), "M1\tMPN-1")
	assert.Contains(t, string(out), "M2\tMPN-2")

	exists, err := store.Exists(ctx, chunkKey("run-1", 0))
	require.NoError(t, err)
	assert.False(t, exists, "chunk files are cleaned up after finalize")
}

func TestFinalizeTick_YieldsAtDeadlineAndResumes(t *testing.T) {
	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, chunkKey("run-2", 0), strings.NewReader("M1\t\t\t\t5\t1\t0\t0\n")))
	require.NoError(t, store.Put(ctx, chunkKey("run-2", 1), strings.NewReader("M2\t\t\t\t3\t2\t0\t0\n")))

	past := time.Now().Add(-time.Hour)
	result, err := FinalizeTick(ctx, store, "run-2", 2, 0, past, 1<<20)
	require.NoError(t, err)
	assert.False(t, result.Done)
	assert.Equal(t, 0, result.FinalizeChunkIdx)

	partial, err := store.Get(ctx, finalizePartialKey("run-2"))
	require.NoError(t, err)
	assert.Equal(t, outputHeader, string(partial))
}

func TestFinalizeTick_TooLargeFails(t *testing.T) {
	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, chunkKey("run-3", 0), strings.NewReader("0123456789")))

	_, err = FinalizeTick(ctx, store, "run-3", 1, 0, time.Now().Add(time.Hour), 4)
	assert.Error(t, err)
}
