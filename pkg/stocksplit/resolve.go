// Package stocksplit implements the IT/EU stock reconciliation engine.
package stocksplit

// Source identifies where the exported quantity came from.
type Source string

const (
	SourceIT        Source = "IT"
	SourceEUFallback Source = "EU_FALLBACK"
)

// Resolution is the pure result of ResolveMarketplaceStock.
type Resolution struct {
	Qty           int
	Source        Source
	ShouldExport  bool
	LeadDays      int
}

// ResolveMarketplaceStock is a pure total function of its five inputs:
//
//	includeEU=false             -> qty=stockIT,            source IT
//	includeEU=true,  stockIT>=2 -> qty=stockIT,            source IT
//	includeEU=true,  stockIT<2  -> qty=stockIT+stockEU,    source EU_FALLBACK
func ResolveMarketplaceStock(stockIT, stockEU int, includeEU bool, daysIT, daysEU int) Resolution {
	if !includeEU {
		export := stockIT >= 2
		lead := 0
		if export {
			lead = daysIT
		}
		return Resolution{Qty: stockIT, Source: SourceIT, ShouldExport: export, LeadDays: lead}
	}

	if stockIT >= 2 {
		return Resolution{Qty: stockIT, Source: SourceIT, ShouldExport: true, LeadDays: daysIT}
	}

	qty := stockIT + stockEU
	export := qty >= 2
	lead := 0
	if export {
		lead = daysEU
	}
	return Resolution{Qty: qty, Source: SourceEUFallback, ShouldExport: export, LeadDays: lead}
}
