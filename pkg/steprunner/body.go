package steprunner

import (
	"context"
	"fmt"
	"strings"

	"github.com/nova-retail/catalogsync/core"
)

// BodyState is the resumable cursor over the material body.
type BodyState struct {
	CursorPos    int64
	ChunkIndex   int
	PartialLine  string
	ProductCount int64
	Skipped      map[string]int64
}

// BodyTickResult is what one tick of body processing produced.
type BodyTickResult struct {
	State     BodyState
	ChunkRows []string // TSV lines to persist as the next numbered chunk, if non-empty
	Done      bool      // true once EOF was reached and the step should move to finalizing
}

const outputHeader = "Matnr\tMPN\tEAN\tDesc\tStock\tLP\tCBP\tSur\n"

// ProcessBodyTick executes one tick of the in_progress sub-phase: fetch
// one window, parse whole lines out of it, carry the remainder as
// partial_line, and advance cursor_pos by the bytes actually received.
func ProcessBodyTick(
	ctx context.Context,
	src RangeSource,
	meta MaterialMeta,
	state BodyState,
	stockIndex map[string]int32,
	priceIndex map[string]PriceEntry,
	maxFetchBytes, maxPartialLineBytes int64,
	maxTotalChunks int,
) (BodyTickResult, error) {
	if state.Skipped == nil {
		state.Skipped = map[string]int64{}
	}

	if state.ChunkIndex > maxTotalChunks {
		return BodyTickResult{}, core.NewError("steprunner.ProcessBodyTick", "step", "", "parse_merge", core.ErrTooManyChunks)
	}

	if state.CursorPos >= meta.TotalBytes {
		return flushFinalPartial(state, meta, stockIndex, priceIndex), nil
	}

	end := state.CursorPos + maxFetchBytes - 1
	if end > meta.TotalBytes-1 {
		end = meta.TotalBytes - 1
	}
	rr, err := src.GetRange(ctx, state.CursorPos, end)
	if err != nil {
		return BodyTickResult{}, fmt.Errorf("steprunner: fetch material range: %w", err)
	}

	switch {
	case rr.StatusCode == 416:
		return flushFinalPartial(state, meta, stockIndex, priceIndex), nil
	case rr.StatusCode == 200 && state.CursorPos > 0:
		return BodyTickResult{}, core.NewError("steprunner.ProcessBodyTick", "step", "", "parse_merge", core.ErrRangeNotHonored)
	case rr.StatusCode == 200 && state.CursorPos == 0 && int64(len(rr.Body)) > maxFetchBytes+64*1024:
		return BodyTickResult{}, core.NewError("steprunner.ProcessBodyTick", "step", "", "parse_merge", core.ErrRangeNotHonored)
	case rr.StatusCode != 206 && rr.StatusCode != 200:
		return BodyTickResult{}, core.NewError("steprunner.ProcessBodyTick", "step", "", "parse_merge", fmt.Errorf("unexpected range status %d", rr.StatusCode))
	}

	text := state.PartialLine + string(rr.Body)
	lastNL := strings.LastIndexByte(text, '\n')

	var complete string
	var newPartial string
	if lastNL == -1 {
		complete = ""
		newPartial = text
	} else {
		complete = text[:lastNL+1]
		newPartial = text[lastNL+1:]
	}

	if int64(len(newPartial)) > maxPartialLineBytes {
		return BodyTickResult{}, core.NewError("steprunner.ProcessBodyTick", "step", "", "parse_merge", core.ErrPartialLineTooLarge)
	}

	var rows []string
	for _, line := range strings.Split(strings.TrimRight(complete, "\n"), "\n") {
		if line == "" {
			continue
		}
		row, skip := processMaterialLine(line, meta, stockIndex, priceIndex)
		if skip != "" {
			state.Skipped[skip]++
			continue
		}
		if row != "" {
			rows = append(rows, row)
			state.ProductCount++
		}
	}

	bytesReceived := int64(len(rr.Body))
	state.PartialLine = newPartial
	state.CursorPos += bytesReceived

	result := BodyTickResult{State: state}
	if len(rows) > 0 {
		result.ChunkRows = rows
		result.State.ChunkIndex++
	}
	return result, nil
}

// flushFinalPartial handles the trailing partial_line left at EOF (a material
// feed not terminated by a final newline). It is routed through
// processMaterialLine exactly like every complete line, so the last record
// still gets Matnr resolution, stock/price lookup, and the skip rules instead
// of landing in products.tsv raw and unfiltered.
func flushFinalPartial(state BodyState, meta MaterialMeta, stockIndex map[string]int32, priceIndex map[string]PriceEntry) BodyTickResult {
	if state.Skipped == nil {
		state.Skipped = map[string]int64{}
	}
	var rows []string
	if trimmed := strings.TrimSpace(state.PartialLine); trimmed != "" {
		row, skip := processMaterialLine(trimmed, meta, stockIndex, priceIndex)
		if skip != "" {
			state.Skipped[skip]++
		} else if row != "" {
			rows = []string{row}
			state.ProductCount++
		}
	}
	state.PartialLine = ""
	result := BodyTickResult{State: state, Done: true}
	if len(rows) > 0 {
		result.ChunkRows = rows
		result.State.ChunkIndex++
	}
	return result
}

func processMaterialLine(line string, meta MaterialMeta, stockIndex map[string]int32, priceIndex map[string]PriceEntry) (row string, skipReason string) {
	fields := strings.Split(line, string(meta.Delimiter))
	matnrCol, ok := meta.Columns["Matnr"]
	if !ok || matnrCol >= len(fields) {
		return "", ""
	}
	matnr := strings.TrimSpace(fields[matnrCol])
	if matnr == "" {
		return "", ""
	}

	stock, hasStock := stockIndex[matnr]
	if !hasStock {
		return "", "noStock"
	}
	price, hasPrice := priceIndex[matnr]
	if !hasPrice {
		return "", "noPrice"
	}
	if stock < 2 {
		return "", "lowStock"
	}
	if price.ListPrice <= 0 && price.CustBestPrice <= 0 {
		return "", "noValid"
	}

	mpn := fieldOrEmpty(fields, meta.Columns, "ManufPartNr")
	ean := fieldOrEmpty(fields, meta.Columns, "EAN")
	desc := fieldOrEmpty(fields, meta.Columns, "Desc")

	row = fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%g\t%g\t%g\n",
		matnr, mpn, ean, desc, stock, price.ListPrice, price.CustBestPrice, price.Surcharge)
	return row, ""
}

func fieldOrEmpty(fields []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}
