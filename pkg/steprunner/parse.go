// Package steprunner executes the heavy per-tick work dispatched by the
// orchestrator: the chunked parse_merge state machine and the downstream
// per-step handlers that each consume the prior step's output and emit
// one new artifact.
package steprunner

import "strings"

// delimiters are tried in this order when more than one ties on count.
var delimiterCandidates = []byte{'\t', ';', ',', '|'}

// DetectDelimiter picks the byte with the highest occurrence count on the
// header line among tab, semicolon, comma, and pipe.
func DetectDelimiter(headerLine string) byte {
	counts := map[byte]int{}
	for _, d := range delimiterCandidates {
		counts[d] = strings.Count(headerLine, string(d))
	}
	best := delimiterCandidates[0]
	bestCount := -1
	for _, d := range delimiterCandidates {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}

// columnAliases maps a canonical column name to every case-insensitive
// header spelling it accepts.
var columnAliases = map[string][]string{
	"Matnr":       {"matnr", "mat_nr", "sku", "material", "materialnumber"},
	"ManufPartNr": {"mpn", "manufpartnr", "manufacturerpartnumber", "partnumber"},
	"EAN":         {"ean", "gtin", "barcode"},
	"Desc":        {"desc", "description", "name", "title"},
	"Stock":       {"stock", "qty", "quantity", "available"},
	"ListPrice":   {"price", "listprice", "list_price", "lp"},
	"CustBestPrice": {"cbp", "custbestprice", "best_price", "bestprice"},
	"Surcharge":   {"surcharge", "sur", "markup"},
	"LocationID":  {"locationid", "location_id", "location", "warehouse"},
}

// ResolveColumns maps each header field (already split by delimiter) to
// the canonical column name it matches, case-insensitively and trimmed.
// Unmatched header fields are simply absent from the result.
func ResolveColumns(headerFields []string) map[string]int {
	lower := make([]string, len(headerFields))
	for i, f := range headerFields {
		lower[i] = strings.ToLower(strings.TrimSpace(f))
	}
	out := map[string]int{}
	for canonical, aliases := range columnAliases {
		aliasSet := make(map[string]bool, len(aliases))
		for _, a := range aliases {
			aliasSet[a] = true
		}
		for i, field := range lower {
			if aliasSet[field] {
				out[canonical] = i
				break
			}
		}
	}
	return out
}

// SplitHeader splits a header line on delim, trimming a trailing \r.
func SplitHeader(line string, delim byte) []string {
	line = strings.TrimRight(line, "\r\n")
	return strings.Split(line, string(delim))
}
