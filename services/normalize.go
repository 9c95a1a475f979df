package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gustakei/lave/models"
)

var (
	// weightUnitRegexp strips unit suffixes like "kg", "quilos", "kilo".
	weightUnitRegexp = regexp.MustCompile(`(?i)\s*(kg|quilos?|kilos?)\s*`)
	// weightCharsRegexp removes everything except digits, comma, period and minus.
	weightCharsRegexp = regexp.MustCompile(`[^\d,.\-]`)
	// embeddedDateRegexp locates a date-looking substring inside free text.
	embeddedDateRegexp = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`)
	// unitIDRegexp keeps word characters and hyphens only.
	unitIDRegexp = regexp.MustCompile(`[^\w\-]`)
)

// dateLayouts are tried in order. Day comes before month: the portal uses
// the Brazilian convention, so "15/01/2025" is January 15th.
var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006/1/2",
	"2/1/06",
	"2-1-06",
}

// ParseWeight extracts a non-negative kg value from raw cell text.
// Comma is treated as the decimal separator; when multiple periods remain
// after substitution, all but the last are thousands separators.
// The second return value is false whenever the text does not parse.
func ParseWeight(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	text = weightUnitRegexp.ReplaceAllString(text, "")
	text = weightCharsRegexp.ReplaceAllString(text, "")

	switch text {
	case "", "-", ".", ",":
		return 0, false
	}

	text = strings.ReplaceAll(text, ",", ".")

	parts := strings.Split(text, ".")
	if len(parts) > 2 {
		text = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// ParseDate normalizes free-form date text to ISO YYYY-MM-DD, day-first.
// With fuzzy enabled, a date embedded in surrounding text is extracted
// before parsing. The second return value is false on failure.
func ParseDate(text string, fuzzy bool) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if iso, ok := parseDateExact(text); ok {
		return iso, true
	}

	if fuzzy {
		if match := embeddedDateRegexp.FindString(text); match != "" {
			return parseDateExact(match)
		}
	}

	return "", false
}

func parseDateExact(text string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// NormalizeUnitID canonicalizes a unit identifier for comparison and
// logging: trimmed, lowercased, word characters and hyphens only.
func NormalizeUnitID(unitID string) string {
	normalized := unitIDRegexp.ReplaceAllString(strings.TrimSpace(unitID), "")
	return strings.ToLower(normalized)
}

// FilterByDateRange keeps rows whose date falls inside [start, end].
// Bounds are inclusive and either may be empty. Dates are zero-padded ISO
// strings, so lexical comparison matches chronological order.
func FilterByDateRange(rows []models.Row, start, end string) []models.Row {
	if len(rows) == 0 {
		return nil
	}

	filtered := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if row.Date == "" {
			continue
		}
		if start != "" && row.Date < start {
			continue
		}
		if end != "" && row.Date > end {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// SumWeights totals kg over rows, skipping rows without a weight, rounded
// to two decimals.
func SumWeights(rows []models.Row) float64 {
	total := 0.0
	for _, row := range rows {
		if row.Kg != nil {
			total += *row.Kg
		}
	}
	return Round2(total)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateDateRange normalizes a pair of date bounds: each bound is parsed
// strictly (no fuzzy extraction, unparseable means absent), a missing bound
// is filled from the present one, and the pair is swapped when reversed.
func ValidateDateRange(start, end string) (string, string) {
	if start != "" {
		start, _ = ParseDate(start, false)
	}
	if end != "" {
		end, _ = ParseDate(end, false)
	}

	if start != "" && end == "" {
		end = start
	} else if end != "" && start == "" {
		start = end
	}

	if start != "" && end != "" && start > end {
		start, end = end, start
	}
	return start, end
}
