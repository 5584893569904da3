// Package export implements the downstream per-step handlers that each
// consume the prior step's tab-separated artifact and emit a new one:
// ean_mapping, pricing, override_products, and the five marketplace
// export builders.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Table is a header-indexed in-memory TSV document. Rows carry every
// column the header names; a step that only cares about a few columns
// still round-trips the rest untouched.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// ReadTSV parses a tab-separated document whose first line is the header.
func ReadTSV(r io.Reader) (Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var header []string
	var rows []map[string]string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if first {
			header = fields
			first = false
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return Table{}, fmt.Errorf("export: scan tsv: %w", err)
	}
	return Table{Header: header, Rows: rows}, nil
}

// WriteTSV serializes t back to tab-separated form, honoring t.Header's
// column order and adding any column present in a row but absent from
// Header at the end (so a step that adds a field without updating Header
// still round-trips it).
func WriteTSV(w io.Writer, t Table) error {
	header := t.Header
	extra := extraColumns(t)
	full := append(append([]string{}, header...), extra...)

	if _, err := io.WriteString(w, strings.Join(full, "\t")+"\n"); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, row := range t.Rows {
		vals := make([]string, len(full))
		for i, col := range full {
			vals[i] = row[col]
		}
		if _, err := io.WriteString(w, strings.Join(vals, "\t")+"\n"); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	return nil
}

func extraColumns(t Table) []string {
	known := make(map[string]bool, len(t.Header))
	for _, c := range t.Header {
		known[c] = true
	}
	var extra []string
	seen := map[string]bool{}
	for _, row := range t.Rows {
		for col := range row {
			if !known[col] && !seen[col] {
				extra = append(extra, col)
				seen[col] = true
			}
		}
	}
	return extra
}

// WithColumn returns t with col appended to Header if not already present.
func (t Table) WithColumn(col string) Table {
	for _, c := range t.Header {
		if c == col {
			return t
		}
	}
	t.Header = append(append([]string{}, t.Header...), col)
	return t
}

// LoadMappingEntries reads the MPN/EAN/Matnr auxiliary feed t into
// MappingEntry rows for RunEANMapping.
func LoadMappingEntries(t Table) []MappingEntry {
	entries := make([]MappingEntry, 0, len(t.Rows))
	for _, row := range t.Rows {
		entries = append(entries, MappingEntry{MPN: row["mpn"], EAN: row["ean"], Matnr: row["matnr"]})
	}
	return entries
}

// LoadOverrides reads the manual-override feed t into Override rows for
// RunOverrideProducts.
func LoadOverrides(t Table) []Override {
	overrides := make([]Override, 0, len(t.Rows))
	for _, row := range t.Rows {
		overrides = append(overrides, Override{
			Matnr: row["matnr"],
			Desc:  row["desc"],
			Stock: row["stock"],
			Price: row["price"],
		})
	}
	return overrides
}
