package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nova-retail/catalogsync/pkg/ean"
	"github.com/xuri/excelize/v2"
)

// DedupeByEAN normalizes each row's EAN (rejecting rows whose EAN does not
// normalize) and keeps, per normalized EAN, the row with the highest
// PriceFinal. Ties keep the first row encountered.
func DedupeByEAN(products Table) (kept []map[string]string, rejected int) {
	best := map[string]map[string]string{}
	order := []string{}

	for _, row := range products.Rows {
		norm := ean.Normalize(row["EAN"])
		if !norm.OK {
			rejected++
			continue
		}
		price := mustParseInt(row["PriceFinal"])
		if cur, ok := best[norm.Value]; !ok {
			best[norm.Value] = withEAN(row, norm.Value)
			order = append(order, norm.Value)
		} else if price > mustParseInt(cur["PriceFinal"]) {
			best[norm.Value] = withEAN(row, norm.Value)
		}
	}

	sort.Strings(order)
	for _, k := range order {
		kept = append(kept, best[k])
	}
	return kept, rejected
}

func withEAN(row map[string]string, normalizedEAN string) map[string]string {
	out := cloneRow(row)
	out["EAN"] = normalizedEAN
	return out
}

func mustParseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// WriteEANCSV writes the deduplicated catalog as CSV. Fields are quoted
// only where the CSV format needs it; the EAN is written as its digit
// string, leading zeros included.
func WriteEANCSV(w io.Writer, header []string, rows []map[string]string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write ean csv header: %w", err)
	}
	for _, row := range rows {
		vals := make([]string, len(header))
		for i, col := range header {
			vals[i] = row[col]
		}
		if err := cw.Write(vals); err != nil {
			return fmt.Errorf("export: write ean csv row: %w", err)
		}
	}
	return nil
}

// WriteEANXLSX writes the same deduplicated catalog to an xlsx workbook,
// forcing the EAN column to text format so Excel doesn't coerce it to a
// number and drop leading zeros.
func WriteEANXLSX(w io.Writer, header []string, rows []map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49}) // "@" text format
	if err != nil {
		return fmt.Errorf("export: build text style: %w", err)
	}

	eanCol := -1
	for i, col := range header {
		colLetter, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s1", colLetter), col); err != nil {
			return fmt.Errorf("export: write xlsx header: %w", err)
		}
		if col == "EAN" {
			eanCol = i
		}
	}

	for r, row := range rows {
		for i, col := range header {
			colLetter, _ := excelize.ColumnNumberToName(i + 1)
			cellRef := fmt.Sprintf("%s%d", colLetter, r+2)
			if err := f.SetCellValue(sheet, cellRef, row[col]); err != nil {
				return fmt.Errorf("export: write xlsx row %d: %w", r, err)
			}
		}
	}

	if eanCol >= 0 {
		colLetter, _ := excelize.ColumnNumberToName(eanCol + 1)
		rng := fmt.Sprintf("%s1:%s%d", colLetter, colLetter, len(rows)+1)
		if err := f.SetColStyle(sheet, colLetter, textStyle); err != nil {
			return fmt.Errorf("export: set ean column style %s: %w", rng, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

// RunExportEAN dedupes products and returns the two artifacts' row sets
// (the CSV and the XLSX share the exact same rows, by construction).
func RunExportEAN(ctx context.Context, products Table) (header []string, rows []map[string]string, rejected int) {
	kept, rejected := DedupeByEAN(products)
	return products.Header, kept, rejected
}
