package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// epriceSchema is the column order export_eprice writes; eprice's feed
// format is far simpler than MediaWorld's fixed-template schema.
var epriceSchema = []string{"sku", "ean", "title", "price", "quantity"}

// WriteEpriceCSV serializes rows in eprice's expected column order.
func WriteEpriceCSV(w io.Writer, rows []MarketplaceRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(epriceSchema); err != nil {
		return fmt.Errorf("export: write eprice header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.SKU, r.EAN, r.Desc, centsToEuroString(r.PriceCents), fmt.Sprintf("%d", r.Quantity)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write eprice row: %w", err)
		}
	}
	return nil
}

// WriteMediaWorldCSV serializes already-built 22-column MediaWorld
// records as CSV.
func WriteMediaWorldCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(mediaWorldSchema); err != nil {
		return fmt.Errorf("export: write mediaworld header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write mediaworld row: %w", err)
		}
	}
	return nil
}
