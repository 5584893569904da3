package export

import (
	"context"
	"strconv"

	"github.com/nova-retail/catalogsync/pkg/pricing"
)

// RunPricing computes PriceFinal and ListPriceWithFee for every product
// using the marketplace-independent part of the price ladder: the CBP
// route when CBP > 0, otherwise the LP route, shipping/VAT/fee_drev
// applied once here. Per-marketplace fee_mkt is layered on later by each
// export step, since it is the only stage of the ladder that varies by
// destination.
func RunPricing(ctx context.Context, products Table, fees pricing.MarketplaceFees) Table {
	out := products.WithColumn("PriceFinal").WithColumn("ListPriceWithFee")
	out.Rows = make([]map[string]string, len(products.Rows))

	for i, row := range products.Rows {
		row = cloneRow(row)
		lp := pricing.ParseLocaleNumber(row["LP"])
		cbp := pricing.ParseLocaleNumber(row["CBP"])
		sur := pricing.ParseLocaleNumber(row["Sur"])

		result := pricing.ComputeLadder(pricing.LadderInput{
			ListPrice:     zeroIfNaN(lp),
			CustBestPrice: zeroIfNaN(cbp),
			Surcharge:     zeroIfNaN(sur),
			ShippingEuros: fees.ShippingEuros,
			VATPercent:    fees.VATPercent,
			FeeDrev:       fees.FeeDrev,
			FeeMkt:        1, // fee_mkt applied per marketplace at export time
		})

		row["PriceFinal"] = strconv.FormatInt(result.PriceFinalCents, 10)
		row["ListPriceWithFee"] = strconv.FormatInt(result.ListPriceWithFeeCents, 10)
		out.Rows[i] = row
	}
	return out
}

func zeroIfNaN(v float64) float64 {
	if v != v {
		return 0
	}
	return v
}
