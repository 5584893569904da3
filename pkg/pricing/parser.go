// Package pricing implements the locale-tolerant numeric parser and the
// integer-cents price arithmetic used by the marketplace price ladder.
package pricing

import (
	"math"
	"strconv"
	"strings"
)

// ParseLocaleNumber tolerates both IT-style ("1.234,56") and US-style
// ("1,234.56") grouping, a bare percent suffix, and values already numeric.
// It returns math.NaN() for anything it cannot parse.
func ParseLocaleNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		if !math.IsInf(n, 0) && !math.IsNaN(n) {
			return n
		}
		return math.NaN()
	case float32:
		return ParseLocaleNumber(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}

	s := toStringToken(v)
	if s == "" {
		return math.NaN()
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	var normalized string
	if hasDot && hasComma {
		// Whichever separator appears last is the decimal point; the
		// other is a thousands grouping separator and is dropped. This
		// handles both "1.234,56" (IT) and "1,234.56" (US) the same way.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			normalized = strings.ReplaceAll(s, ".", "")
			normalized = strings.ReplaceAll(normalized, ",", ".")
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}
	} else {
		normalized = strings.ReplaceAll(s, ",", ".")
	}

	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// toStringToken stringifies v, trims it, keeps only digits/space/./,/%/-,
// takes the first whitespace-delimited token and strips '%'.
func toStringToken(v interface{}) string {
	raw, ok := v.(string)
	if !ok {
		return ""
	}
	raw = strings.TrimSpace(raw)

	var kept strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == ' ', r == '%', r == '-':
			kept.WriteRune(r)
		}
	}

	token := strings.TrimSpace(kept.String())
	if fields := strings.Fields(token); len(fields) > 0 {
		token = fields[0]
	} else {
		token = ""
	}

	return strings.ReplaceAll(token, "%", "")
}
