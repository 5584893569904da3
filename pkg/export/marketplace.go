package export

import (
	"fmt"

	"github.com/nova-retail/catalogsync/pkg/ean"
	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/nova-retail/catalogsync/pkg/stocksplit"
)

// MarketplaceRow is the shared shape the eprice and MediaWorld exports
// build before each applies its own output schema.
type MarketplaceRow struct {
	SKU        string
	EAN        string
	Desc       string
	PriceCents int64
	Quantity   int
}

// BuildMarketplaceRows runs the same stock-resolution and fee_mkt pass as
// Amazon, without Amazon's ,99-ending and template requirements; eprice
// and MediaWorld both call this and diverge only in serialization.
func BuildMarketplaceRows(products Table, fees pricing.MarketplaceFees, stockEUByMatnr map[string]int) []MarketplaceRow {
	var rows []MarketplaceRow
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
			priceCents = pricing.RoundCents(float64(priceCents) * fees.FeeMkt)
		}
		if priceCents <= 0 {
			continue
		}
		rows = append(rows, MarketplaceRow{SKU: sku, EAN: norm.Value, Desc: p["Desc"], PriceCents: priceCents, Quantity: res.Qty})
	}
	return rows
}

// mediaWorldSchema names the 22 fixed columns the MediaWorld marketplace
// feed template requires, in order. Status, logistic class, condition and
// channel get the template's fixed value; columns with neither a source in
// MarketplaceRow nor a fixed value are left blank.
var mediaWorldSchema = []string{
	"sku", "ean", "title", "description", "category", "brand",
	"price", "vat_rate", "quantity", "status", "logistic_class",
	"strikethrough_price", "condition", "warranty_months", "image_url",
	"weight_kg", "length_cm", "width_cm", "height_cm",
	"handling_time_days", "shipping_cost", "channel",
}

const (
	mediaWorldFixedStatus          = "active"
	mediaWorldFixedLogisticClass   = "standard"
	mediaWorldFixedCondition       = "new"
	mediaWorldFixedChannel         = "marketplace"
)

// BuildMediaWorldRecords maps each MarketplaceRow onto the 22-column
// MediaWorld schema, filling the template's fixed fields and leaving
// physical-dimension fields blank (not sourced from the catalog feed).
func BuildMediaWorldRecords(rows []MarketplaceRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := map[string]string{
			"sku":                  r.SKU,
			"ean":                  r.EAN,
			"title":                r.Desc,
			"description":          r.Desc,
			"price":                centsToEuroString(r.PriceCents),
			"vat_rate":             "22",
			"quantity":             fmt.Sprintf("%d", r.Quantity),
			"status":               mediaWorldFixedStatus,
			"logistic_class":       mediaWorldFixedLogisticClass,
			"strikethrough_price":  "",
			"condition":            mediaWorldFixedCondition,
			"channel":              mediaWorldFixedChannel,
		}
		row := make([]string, len(mediaWorldSchema))
		for i, col := range mediaWorldSchema {
			row[i] = rec[col]
		}
		out = append(out, row)
	}
	return out
}

// ValidateMediaWorldSchema checks every record against the embedded
// template's field-type and bound requirements: correct column count,
// non-negative quantity, a price string, and a status drawn from the
// fixed set the template allows.
func ValidateMediaWorldSchema(records [][]string) error {
	statusIdx := colIndex(mediaWorldSchema, "status")
	qtyIdx := colIndex(mediaWorldSchema, "quantity")
	priceIdx := colIndex(mediaWorldSchema, "price")
	for i, rec := range records {
		if len(rec) != len(mediaWorldSchema) {
			return fmt.Errorf("export: mediaworld record %d has %d columns, want %d", i, len(rec), len(mediaWorldSchema))
		}
		if rec[statusIdx] != mediaWorldFixedStatus {
			return fmt.Errorf("export: mediaworld record %d has invalid status %q", i, rec[statusIdx])
		}
		if rec[priceIdx] == "" {
			return fmt.Errorf("export: mediaworld record %d has no price", i)
		}
		if rec[qtyIdx] == "" || mustParseInt(rec[qtyIdx]) < 0 {
			return fmt.Errorf("export: mediaworld record %d has invalid quantity %q", i, rec[qtyIdx])
		}
	}
	return nil
}

func colIndex(schema []string, name string) int {
	for i, c := range schema {
		if c == name {
			return i
		}
	}
	return -1
}
