package stocksplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMarketplaceStock_GoldenCases(t *testing.T) {
	cases := []struct {
		name                string
		stockIT, stockEU    int
		includeEU           bool
		daysIT, daysEU      int
		want                Resolution
	}{
		{
			"no EU, IT sufficient",
			5, 100, false, 2, 5,
			Resolution{Qty: 5, Source: SourceIT, ShouldExport: true, LeadDays: 2},
		},
		{
			"no EU, IT insufficient",
			1, 100, false, 2, 5,
			Resolution{Qty: 1, Source: SourceIT, ShouldExport: false, LeadDays: 0},
		},
		{
			"EU allowed, IT sufficient uses IT only",
			2, 50, true, 2, 5,
			Resolution{Qty: 2, Source: SourceIT, ShouldExport: true, LeadDays: 2},
		},
		{
			"EU allowed, IT insufficient falls back and exports",
			1, 3, true, 2, 5,
			Resolution{Qty: 4, Source: SourceEUFallback, ShouldExport: true, LeadDays: 5},
		},
		{
			"EU allowed, IT and EU both insufficient",
			0, 1, true, 2, 5,
			Resolution{Qty: 1, Source: SourceEUFallback, ShouldExport: false, LeadDays: 0},
		},
		{
			"EU allowed, zero everywhere",
			0, 0, true, 2, 5,
			Resolution{Qty: 0, Source: SourceEUFallback, ShouldExport: false, LeadDays: 0},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ResolveMarketplaceStock(c.stockIT, c.stockEU, c.includeEU, c.daysIT, c.daysEU)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestIngestLocations_OrphanWarning(t *testing.T) {
	rows := []LocationRow{
		{Matnr: "A", LocationID: "4242", Stock: 3},
		{Matnr: "A", LocationID: "4254", Stock: 2},
		{Matnr: "B", LocationID: "4255", Stock: 1},
		{Matnr: "C", LocationID: "4254", Stock: 4},
		{Matnr: "C", LocationID: "4255", Stock: 1},
	}
	res := IngestLocations(rows)
	assert.Equal(t, LocationTotals{StockIT: 3, StockEU: 2}, res.Totals["A"])
	assert.Equal(t, LocationTotals{StockEU: 4}, res.Totals["C"])
	assert.Equal(t, 1, res.Warnings["orphan_4255"])
}
