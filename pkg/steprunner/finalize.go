package steprunner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
)

// FinalizeResult is the outcome of one finalize tick.
type FinalizeResult struct {
	FinalizeChunkIdx int
	Done             bool
}

// chunkKey and finalizeKeys mirror the storage layout: numbered chunk
// files under parse_merge_chunks/, a resumable concatenation buffer, and
// the eventual outputs/products.tsv.
func chunkKey(runID string, idx int) string {
	return fmt.Sprintf("state/%s/parse_merge_chunks/%d.tsv", runID, idx)
}

func finalizePartialKey(runID string) string {
	return fmt.Sprintf("state/%s/parse_merge_chunks/finalize_partial.tsv", runID)
}

func productsOutputKey(runID string) string {
	return "outputs/products.tsv"
}

// FinalizeTick implements one budgeted pass of the "finalizing" sub-phase:
// resume from finalizeChunkIdx, append whole chunks until either the
// deadline or chunkIndex is reached, persisting a resumable buffer on
// yield and writing the final products.tsv on completion.
func FinalizeTick(
	ctx context.Context,
	store objectstore.Store,
	runID string,
	chunkIndex int,
	finalizeChunkIdx int,
	deadline time.Time,
	maxTotalSizeBytes int64,
) (FinalizeResult, error) {
	buf, err := loadFinalizePartial(ctx, store, runID)
	if err != nil {
		return FinalizeResult{}, err
	}

	i := finalizeChunkIdx
	for ; i < chunkIndex; i++ {
		if time.Now().After(deadline) {
			if err := store.Put(ctx, finalizePartialKey(runID), strings.NewReader(buf)); err != nil {
				return FinalizeResult{}, fmt.Errorf("steprunner: persist finalize_partial: %w", err)
			}
			return FinalizeResult{FinalizeChunkIdx: i}, nil
		}

		chunk, err := store.Get(ctx, chunkKey(runID, i))
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("steprunner: read chunk %d: %w", i, err)
		}
		buf += string(chunk)
		if int64(len(buf)) > maxTotalSizeBytes {
			return FinalizeResult{}, core.NewError("steprunner.FinalizeTick", "step", runID, "parse_merge", core.ErrFinalizationTooLarge)
		}
	}

	if err := store.Put(ctx, productsOutputKey(runID), strings.NewReader(buf)); err != nil {
		return FinalizeResult{}, fmt.Errorf("steprunner: write products.tsv: %w", err)
	}

	cleanupIntermediates(ctx, store, runID, chunkIndex)

	return FinalizeResult{FinalizeChunkIdx: i, Done: true}, nil
}

func loadFinalizePartial(ctx context.Context, store objectstore.Store, runID string) (string, error) {
	exists, err := store.Exists(ctx, finalizePartialKey(runID))
	if err != nil {
		return "", fmt.Errorf("steprunner: check finalize_partial: %w", err)
	}
	if !exists {
		return outputHeader, nil
	}
	b, err := store.Get(ctx, finalizePartialKey(runID))
	if err != nil {
		return "", fmt.Errorf("steprunner: read finalize_partial: %w", err)
	}
	return string(b), nil
}

func cleanupIntermediates(ctx context.Context, store objectstore.Store, runID string, chunkIndex int) {
	_ = store.Delete(ctx, finalizePartialKey(runID))
	_ = store.Delete(ctx, fmt.Sprintf("state/%s/stock_index.json", runID))
	_ = store.Delete(ctx, fmt.Sprintf("state/%s/price_index.json", runID))
	_ = store.Delete(ctx, fmt.Sprintf("state/%s/material_meta.json", runID))
	for i := 0; i < chunkIndex; i++ {
		_ = store.Delete(ctx, chunkKey(runID, i))
	}
}
