package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/ean"
	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/nova-retail/catalogsync/pkg/stocksplit"
	"github.com/xuri/excelize/v2"
)

// AmazonRow is one coherent Amazon listing row: present in both the
// ListingLoader workbook and price_inventory.txt, in lock-step.
type AmazonRow struct {
	SKU             string
	PriceCents      int64
	Quantity        int
	HandlingDays    int
	FulfillmentChan string
}

// BuildAmazonRows applies the deterministic Amazon filter: valid 13/14
// digit EAN, non-empty SKU, resolveMarketplaceStock says export with
// qty >= 2, and a strictly positive ,99-ending price.
func BuildAmazonRows(products Table, fees pricing.MarketplaceFees, stockEUByMatnr map[string]int) ([]AmazonRow, error) {
	var rows []AmazonRow
	for _, p := range products.Rows {
		norm := ean.Normalize(p["EAN"])
		if !norm.OK {
			continue
		}
		sku := p["Matnr"]
		if sku == "" {
			continue
		}

		stockIT := int(mustParseInt(p["Stock"]))
		stockEU := stockEUByMatnr[sku]
		res := stocksplit.ResolveMarketplaceStock(stockIT, stockEU, fees.IncludeEU, fees.ItPrepDays, fees.EuPrepDays)
		if !res.ShouldExport || res.Qty < 2 {
			continue
		}

		priceCents := mustParseInt(p["PriceFinal"])
		if fees.FeeMkt != 1 {
			priceCents = pricing.ToComma99Cents(pricing.RoundCents(float64(priceCents) * fees.FeeMkt))
		}
		if priceCents <= 0 || !pricing.EndsInComma99(priceCents) {
			continue
		}

		rows = append(rows, AmazonRow{
			SKU:             sku,
			PriceCents:      priceCents,
			Quantity:        res.Qty,
			HandlingDays:    res.LeadDays,
			FulfillmentChan: "MFN",
		})
	}
	return rows, nil
}

// WriteAmazonPriceInventoryTXT writes the tab-separated feed Amazon's
// flat-file pricing/inventory loader expects.
func WriteAmazonPriceInventoryTXT(w io.Writer, rows []AmazonRow) error {
	header := "sku\tprice\tminimum-seller-allowed-price\tmaximum-seller-allowed-price\tquantity\tfulfillment-channel\thandling-time\n"
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("export: write amazon txt header: %w", err)
	}
	for _, r := range rows {
		price := centsToEuroString(r.PriceCents)
		line := fmt.Sprintf("%s\t%s\t\t\t%d\t%s\t%d\n", r.SKU, price, r.Quantity, r.FulfillmentChan, r.HandlingDays)
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("export: write amazon txt row: %w", err)
		}
	}
	return nil
}

// WriteAmazonListingLoader mutates a template's "Modello" sheet in place,
// one row per AmazonRow, at the fixed column indices the Amazon listing
// template expects (A=SKU, B=price, E=quantity, F=handling-time). The
// template's macros are preserved only if the caller saved/reopened the
// same file the template was loaded from; this function edits cell values
// without touching the workbook's vbaProject stream.
func WriteAmazonListingLoader(template *excelize.File, rows []AmazonRow) error {
	const sheet = "Modello"
	const headerRow = 2 // row 1 is the template's column-title row

	for i, r := range rows {
		row := headerRow + i
		if err := template.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.SKU); err != nil {
			return fmt.Errorf("export: set sku cell: %w", err)
		}
		if err := template.SetCellValue(sheet, fmt.Sprintf("B%d", row), centsToEuroString(r.PriceCents)); err != nil {
			return fmt.Errorf("export: set price cell: %w", err)
		}
		if err := template.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Quantity); err != nil {
			return fmt.Errorf("export: set quantity cell: %w", err)
		}
		if err := template.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.HandlingDays); err != nil {
			return fmt.Errorf("export: set handling-time cell: %w", err)
		}
	}
	return nil
}

// ReadBackListingLoaderRows reconstructs the AmazonRow set actually present
// in a written "Modello" sheet by reading the same cells
// WriteAmazonListingLoader just set, scanning from the header row until the
// first blank SKU. It lets callers verify the xlsm artifact against what
// excelize actually committed rather than the in-memory rows it was handed.
func ReadBackListingLoaderRows(template *excelize.File) ([]AmazonRow, error) {
	const sheet = "Modello"
	const headerRow = 2

	var rows []AmazonRow
	for row := headerRow; ; row++ {
		sku, err := template.GetCellValue(sheet, fmt.Sprintf("A%d", row))
		if err != nil {
			return nil, fmt.Errorf("export: read back sku cell: %w", err)
		}
		if sku == "" {
			break
		}
		priceStr, err := template.GetCellValue(sheet, fmt.Sprintf("B%d", row))
		if err != nil {
			return nil, fmt.Errorf("export: read back price cell: %w", err)
		}
		qtyStr, err := template.GetCellValue(sheet, fmt.Sprintf("E%d", row))
		if err != nil {
			return nil, fmt.Errorf("export: read back quantity cell: %w", err)
		}
		handlingStr, err := template.GetCellValue(sheet, fmt.Sprintf("F%d", row))
		if err != nil {
			return nil, fmt.Errorf("export: read back handling-time cell: %w", err)
		}
		rows = append(rows, AmazonRow{
			SKU:          sku,
			PriceCents:   pricing.RoundCents(pricing.ParseLocaleNumber(priceStr) * 100),
			Quantity:     int(pricing.RoundCents(pricing.ParseLocaleNumber(qtyStr))),
			HandlingDays: int(pricing.RoundCents(pricing.ParseLocaleNumber(handlingStr))),
		})
	}
	return rows, nil
}

// ReadBackPriceInventoryRows reconstructs the AmazonRow set actually present
// in a written price_inventory.txt buffer, parsing the same lines
// WriteAmazonPriceInventoryTXT just produced.
func ReadBackPriceInventoryRows(txt []byte) ([]AmazonRow, error) {
	text := strings.TrimRight(string(txt), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return nil, nil
	}

	var rows []AmazonRow
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("export: malformed price_inventory row %q", line)
		}
		qty, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("export: parse price_inventory quantity %q: %w", fields[4], err)
		}
		handling, err := strconv.Atoi(fields[6])
		if err != nil {
			return nil, fmt.Errorf("export: parse price_inventory handling-time %q: %w", fields[6], err)
		}
		rows = append(rows, AmazonRow{
			SKU:             fields[0],
			PriceCents:      pricing.RoundCents(pricing.ParseLocaleNumber(fields[1]) * 100),
			Quantity:        qty,
			FulfillmentChan: fields[5],
			HandlingDays:    handling,
		})
	}
	return rows, nil
}

// CheckAmazonCoherence enforces that the xlsm and txt artifacts describe
// exactly the same rows, in the same order: same count, same SKU at each
// index, same quantity/price/handling-time.
func CheckAmazonCoherence(xlsmRows, txtRows []AmazonRow) error {
	if len(xlsmRows) != len(txtRows) {
		return core.NewError("export.CheckAmazonCoherence", "step", "", "export_amazon",
			fmt.Errorf("%w: xlsm has %d rows, txt has %d", core.ErrAmazonCoherence, len(xlsmRows), len(txtRows)))
	}
	for i := range xlsmRows {
		a, b := xlsmRows[i], txtRows[i]
		if a.SKU != b.SKU || a.Quantity != b.Quantity || a.PriceCents != b.PriceCents || a.HandlingDays != b.HandlingDays {
			return core.NewError("export.CheckAmazonCoherence", "step", "", "export_amazon",
				fmt.Errorf("%w: row %d diverges (sku %s vs %s)", core.ErrAmazonCoherence, i, a.SKU, b.SKU))
		}
	}
	return nil
}

func centsToEuroString(cents int64) string {
	euros := cents / 100
	rem := cents % 100
	if rem < 0 {
		rem = -rem
	}
	return strconv.FormatInt(euros, 10) + "." + padTwo(rem)
}

func padTwo(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}
