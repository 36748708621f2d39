// Package offer extracts price candidates from negotiation message text.
//
// Extraction is heuristic rule matching, not parsing: it has known
// false-negative classes (prices phrased without any recognized marker) and
// the calendar-year filter is a best-effort guard, not a guarantee.
package offer

import (
	"regexp"
	"strconv"
	"strings"
)

// Bare 3-4 digit numbers inside this range are treated as calendar years
// (item descriptors like "2018 Honda Civic"), never as prices.
const (
	yearMin = 2000
	yearMax = 2030
)

var (
	reDollar      = regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`)
	reDollarsWord = regexp.MustCompile(`(?i)\b(\d+(?:,\d{3})*(?:\.\d{2})?)\s*dollars?\b`)
	reContextWord = regexp.MustCompile(`(?i)\b(?:at|for|offer|price|pay)\s+\$?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)\b`)
	reBareNumber  = regexp.MustCompile(`\b(\d{3,4})\b`)
)

// Extract returns the first price candidate found in the message, applying
// the ordered rules: contextual matches first, then bare 3-4 digit numbers
// outside the calendar-year range. The boolean is false when nothing matched.
func Extract(message string) (float64, bool) {
	if v, ok := ExtractContextual(message); ok {
		return v, true
	}
	for _, m := range reBareNumber.FindAllStringSubmatch(message, -1) {
		v, err := parseAmount(m[1])
		if err != nil {
			continue
		}
		if v >= yearMin && v <= yearMax {
			continue
		}
		return v, true
	}
	return 0, false
}

// ExtractContextual applies only the high-confidence rules: $-prefixed
// amounts, "N dollars", and numbers adjacent to a negotiation context word
// (at, for, offer, price, pay). The adjudicator's fallback path uses this
// rule alone so that item-descriptor numbers can never become agreed terms.
func ExtractContextual(message string) (float64, bool) {
	for _, re := range []*regexp.Regexp{reDollar, reDollarsWord, reContextWord} {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		v, err := parseAmount(m[1])
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
