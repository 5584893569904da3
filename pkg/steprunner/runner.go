package steprunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
)

func byteReader(b []byte) io.Reader { return bytes.NewReader(b) }

// ParseMergeTickResult is what one tick of the parse_merge dispatcher
// produces: the patch to merge into steps["parse_merge"].Fields, plus
// whether the step is done and should advance to ean_mapping.
type ParseMergeTickResult struct {
	Patch map[string]interface{}
	Done  bool
}

// ParseMergeDeps bundles the collaborators a parse_merge tick needs. The
// stock/price material sources are resolved by the caller from the run's
// configured input locations; stockRaw/priceRaw are the full feed bodies
// (small enough to load whole), while materialSrc is range-fetched in
// chunks because the material feed is the one that can be huge.
type ParseMergeDeps struct {
	Store             objectstore.Store
	StockRaw          []byte
	PriceRaw          []byte
	MaterialSrc       RangeSource
	MaxFetchBytes     int64
	MaxPartialLine    int64
	MaxTotalChunks    int
	MaxTotalSizeBytes int64
	TickDeadline      time.Time
}

// RunParseMergeTick dispatches one tick of the chunked sub-phase state
// machine against the step's persisted fields, returning the patch to
// merge back via store.RunStore.MergeStep.
func RunParseMergeTick(ctx context.Context, runID string, fields map[string]interface{}, deps ParseMergeDeps) (ParseMergeTickResult, error) {
	phase, _ := fields["phase"].(string)
	if phase == "" {
		phase = "pending"
	}

	switch phase {
	case "pending":
		return ParseMergeTickResult{Patch: map[string]interface{}{"phase": "building_stock_index"}}, nil

	case "building_stock_index":
		index, warnings := BuildStockIndex(deps.StockRaw)
		raw, err := MarshalIndex(ctx, index)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		if err := deps.Store.Put(ctx, stockIndexKey(runID), byteReader(raw)); err != nil {
			return ParseMergeTickResult{}, fmt.Errorf("steprunner: persist stock_index: %w", err)
		}
		patch := map[string]interface{}{"phase": "building_price_index"}
		if warnings > 0 {
			patch["invalid_stock_warnings"] = warnings
		}
		return ParseMergeTickResult{Patch: patch}, nil

	case "building_price_index":
		index := BuildPriceIndex(deps.PriceRaw)
		raw, err := MarshalIndex(ctx, index)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		if err := deps.Store.Put(ctx, priceIndexKey(runID), byteReader(raw)); err != nil {
			return ParseMergeTickResult{}, fmt.Errorf("steprunner: persist price_index: %w", err)
		}
		return ParseMergeTickResult{Patch: map[string]interface{}{"phase": "preparing_material"}}, nil

	case "preparing_material":
		meta, err := PrepareMaterial(ctx, deps.MaterialSrc, deps.MaxFetchBytes)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return ParseMergeTickResult{}, fmt.Errorf("steprunner: marshal material_meta: %w", err)
		}
		if err := deps.Store.Put(ctx, materialMetaKey(runID), byteReader(raw)); err != nil {
			return ParseMergeTickResult{}, fmt.Errorf("steprunner: persist material_meta: %w", err)
		}
		return ParseMergeTickResult{Patch: map[string]interface{}{
			"phase":       "in_progress",
			"cursor_pos":  float64(meta.HeaderEndPos),
			"chunk_index": float64(0),
		}}, nil

	case "in_progress":
		meta, stockIdx, priceIdx, err := loadParseMergeState(ctx, deps.Store, runID)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		state := bodyStateFromFields(fields)
		result, err := ProcessBodyTick(ctx, deps.MaterialSrc, meta, state, stockIdx, priceIdx, deps.MaxFetchBytes, deps.MaxPartialLine, deps.MaxTotalChunks)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		if len(result.ChunkRows) > 0 {
			body := ""
			for _, row := range result.ChunkRows {
				body += row
			}
			idx := result.State.ChunkIndex - 1
			if err := deps.Store.Put(ctx, chunkKey(runID, idx), byteReader([]byte(body))); err != nil {
				return ParseMergeTickResult{}, fmt.Errorf("steprunner: persist chunk %d: %w", idx, err)
			}
		}
		patch := bodyStateToFields(result.State)
		if result.Done {
			patch["phase"] = "finalizing"
			patch["finalize_chunk_idx"] = float64(0)
		}
		for k, v := range result.State.Skipped {
			patch["skipped_"+k] = v
		}
		return ParseMergeTickResult{Patch: patch}, nil

	case "finalizing":
		chunkIndex := intField(fields, "chunk_index")
		finalizeIdx := intField(fields, "finalize_chunk_idx")
		result, err := FinalizeTick(ctx, deps.Store, runID, chunkIndex, finalizeIdx, deps.TickDeadline, deps.MaxTotalSizeBytes)
		if err != nil {
			return ParseMergeTickResult{}, err
		}
		if result.Done {
			return ParseMergeTickResult{Patch: map[string]interface{}{"phase": "completed"}, Done: true}, nil
		}
		return ParseMergeTickResult{Patch: map[string]interface{}{"finalize_chunk_idx": float64(result.FinalizeChunkIdx)}}, nil

	case "completed":
		return ParseMergeTickResult{Done: true}, nil

	default:
		return ParseMergeTickResult{}, core.NewError("steprunner.RunParseMergeTick", "step", runID, "parse_merge", fmt.Errorf("unknown phase %q", phase))
	}
}

func stockIndexKey(runID string) string    { return fmt.Sprintf("state/%s/stock_index.json", runID) }
func priceIndexKey(runID string) string    { return fmt.Sprintf("state/%s/price_index.json", runID) }
func materialMetaKey(runID string) string  { return fmt.Sprintf("state/%s/material_meta.json", runID) }

func loadParseMergeState(ctx context.Context, store objectstore.Store, runID string) (MaterialMeta, map[string]int32, map[string]PriceEntry, error) {
	var meta MaterialMeta
	rawMeta, err := store.Get(ctx, materialMetaKey(runID))
	if err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: read material_meta: %w", err)
	}
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: unmarshal material_meta: %w", err)
	}

	stockIdx := map[string]int32{}
	rawStock, err := store.Get(ctx, stockIndexKey(runID))
	if err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: read stock_index: %w", err)
	}
	if err := json.Unmarshal(rawStock, &stockIdx); err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: unmarshal stock_index: %w", err)
	}

	priceIdx := map[string]PriceEntry{}
	rawPrice, err := store.Get(ctx, priceIndexKey(runID))
	if err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: read price_index: %w", err)
	}
	if err := json.Unmarshal(rawPrice, &priceIdx); err != nil {
		return meta, nil, nil, fmt.Errorf("steprunner: unmarshal price_index: %w", err)
	}

	return meta, stockIdx, priceIdx, nil
}

func bodyStateFromFields(fields map[string]interface{}) BodyState {
	state := BodyState{
		CursorPos:   int64(floatField(fields, "cursor_pos")),
		ChunkIndex:  intField(fields, "chunk_index"),
		PartialLine: stringField(fields, "partial_line"),
		Skipped:     map[string]int64{},
	}
	return state
}

func bodyStateToFields(state BodyState) map[string]interface{} {
	return map[string]interface{}{
		"cursor_pos":    float64(state.CursorPos),
		"chunk_index":   float64(state.ChunkIndex),
		"partial_line":  state.PartialLine,
		"product_count": float64(state.ProductCount),
	}
}

func floatField(fields map[string]interface{}, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func intField(fields map[string]interface{}, key string) int {
	return int(floatField(fields, key))
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}
