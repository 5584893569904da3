package export

import (
	"context"
	"regexp"
	"strings"

	"github.com/nova-retail/catalogsync/pkg/ean"
)

// MappingEntry is one row of the auxiliary MPN -> EAN mapping feed.
type MappingEntry struct {
	MPN   string
	EAN   string
	Matnr string // optional; present when the mapping is keyed per-material
}

var scientificNotationRE = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)?[eE][+-]?\d+$`)

type mpnCandidate struct {
	normalizedEAN string
	matnr         string
}

// RunEANMapping fills every product's empty EAN column from mapping,
// classifying conflicts the way a human reconciler would:
//
//   - a single normalized EAN for the MPN: fill it (Case 1/2B/2C).
//   - more than one normalized EAN, but one candidate's Matnr matches the
//     product's own Matnr: that candidate wins (Case 2A).
//   - more than one distinct normalized EAN with no material match: refuse
//     to prefill (Case 3, ambiguous).
//
// Scientific-notation MPNs are warned, never blocked; an MPN merely
// containing "E+" is purely informational and does not affect filling.
func RunEANMapping(ctx context.Context, products Table, mapping []MappingEntry) (Table, map[string]int) {
	warnings := map[string]int{}

	byMPN := map[string][]mpnCandidate{}
	for _, m := range mapping {
		norm := ean.Normalize(m.EAN)
		if !norm.OK {
			continue
		}
		byMPN[m.MPN] = append(byMPN[m.MPN], mpnCandidate{normalizedEAN: norm.Value, matnr: m.Matnr})
	}

	out := products
	out.Rows = make([]map[string]string, len(products.Rows))
	for i, row := range products.Rows {
		row = cloneRow(row)
		out.Rows[i] = row

		mpn := row["MPN"]
		if mpn == "" {
			continue
		}
		if scientificNotationRE.MatchString(mpn) {
			warnings["mpnScientificNotation"]++
		} else if strings.Contains(mpn, "E+") {
			warnings["mpnHasEPlusInformational"]++
		}

		if row["EAN"] != "" {
			continue // never rewrite an existing EAN
		}

		candidates := byMPN[mpn]
		if len(candidates) == 0 {
			continue
		}

		distinct := distinctEANs(candidates)
		switch {
		case len(distinct) == 1:
			row["EAN"] = distinct[0]
		default:
			if matnr := row["Matnr"]; matnr != "" {
				if winner, ok := materialWinner(candidates, matnr); ok {
					row["EAN"] = winner
					continue
				}
			}
			warnings["mpnAmbiguous"]++
		}
	}

	return out, warnings
}

func distinctEANs(candidates []mpnCandidate) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		if !seen[c.normalizedEAN] {
			seen[c.normalizedEAN] = true
			out = append(out, c.normalizedEAN)
		}
	}
	return out
}

func materialWinner(candidates []mpnCandidate, matnr string) (string, bool) {
	for _, c := range candidates {
		if c.matnr == matnr {
			return c.normalizedEAN, true
		}
	}
	return "", false
}

func cloneRow(row map[string]string) map[string]string {
	clone := make(map[string]string, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}
