package steprunner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nova-retail/catalogsync/pkg/pricing"
)

// PriceEntry is one row of the price index.
type PriceEntry struct {
	ListPrice     float64 `json:"list_price"`
	CustBestPrice float64 `json:"cust_best_price"`
	Surcharge     float64 `json:"surcharge"`
}

// BuildStockIndex parses a stock feed into Matnr -> quantity, with one
// invalid_stock_value warning per unparseable row (treated as 0).
func BuildStockIndex(raw []byte) (index map[string]int32, warnings int) {
	index = map[string]int32{}
	lines := splitLines(raw)
	if len(lines) == 0 {
		return index, 0
	}
	delim := DetectDelimiter(lines[0])
	cols := ResolveColumns(SplitHeader(lines[0], delim))
	matnrCol, hasMatnr := cols["Matnr"]
	stockCol, hasStock := cols["Stock"]
	if !hasMatnr || !hasStock {
		return index, 0
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, string(delim))
		if matnrCol >= len(fields) || stockCol >= len(fields) {
			continue
		}
		matnr := strings.TrimSpace(fields[matnrCol])
		if matnr == "" {
			continue
		}
		v := pricing.ParseLocaleNumber(fields[stockCol])
		if v != v { // NaN
			index[matnr] = 0
			warnings++
			continue
		}
		index[matnr] = int32(v)
	}
	return index, warnings
}

// BuildPriceIndex parses a price feed into Matnr -> PriceEntry using the
// locale-tolerant numeric parser for every money column.
func BuildPriceIndex(raw []byte) map[string]PriceEntry {
	index := map[string]PriceEntry{}
	lines := splitLines(raw)
	if len(lines) == 0 {
		return index
	}
	delim := DetectDelimiter(lines[0])
	cols := ResolveColumns(SplitHeader(lines[0], delim))
	matnrCol, hasMatnr := cols["Matnr"]
	if !hasMatnr {
		return index
	}
	lpCol, hasLP := cols["ListPrice"]
	cbpCol, hasCBP := cols["CustBestPrice"]
	surCol, hasSur := cols["Surcharge"]

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, string(delim))
		if matnrCol >= len(fields) {
			continue
		}
		matnr := strings.TrimSpace(fields[matnrCol])
		if matnr == "" {
			continue
		}
		var entry PriceEntry
		if hasLP && lpCol < len(fields) {
			entry.ListPrice = naNToZero(pricing.ParseLocaleNumber(fields[lpCol]))
		}
		if hasCBP && cbpCol < len(fields) {
			entry.CustBestPrice = naNToZero(pricing.ParseLocaleNumber(fields[cbpCol]))
		}
		if hasSur && surCol < len(fields) {
			entry.Surcharge = naNToZero(pricing.ParseLocaleNumber(fields[surCol]))
		}
		index[matnr] = entry
	}
	return index
}

func naNToZero(v float64) float64 {
	if v != v {
		return 0
	}
	return v
}

func splitLines(raw []byte) []string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// MarshalIndex is a small helper so callers persist indices as JSON
// without repeating the same two lines at every call site.
func MarshalIndex(ctx context.Context, v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("steprunner: marshal index: %w", err)
	}
	return b, nil
}
