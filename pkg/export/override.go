package export

import "context"

// Override is one manually curated correction, keyed by Matnr. Empty
// fields are left untouched; only non-empty override fields replace the
// computed value.
type Override struct {
	Matnr string
	Desc  string
	Stock string
	Price string // overrides PriceFinal directly, in cents
}

// RunOverrideProducts applies the manual override table on top of the
// priced product set. Overrides never introduce new products; a Matnr
// absent from products is silently ignored (it has nothing to override).
func RunOverrideProducts(ctx context.Context, products Table, overrides []Override) (Table, int) {
	byMatnr := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		byMatnr[o.Matnr] = o
	}

	out := products
	out.Rows = make([]map[string]string, len(products.Rows))
	applied := 0

	for i, row := range products.Rows {
		row = cloneRow(row)
		if o, ok := byMatnr[row["Matnr"]]; ok {
			changed := false
			if o.Desc != "" {
				row["Desc"] = o.Desc
				changed = true
			}
			if o.Stock != "" {
				row["Stock"] = o.Stock
				changed = true
			}
			if o.Price != "" {
				row["PriceFinal"] = o.Price
				changed = true
			}
			if changed {
				applied++
			}
		}
		out.Rows[i] = row
	}
	return out, applied
}
