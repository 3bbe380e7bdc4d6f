package pricing

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var nonCashChars = regexp.MustCompile(`[^0-9.]`)

// ParseCash sanitises raw tendered-cash input from the terminal: everything
// except digits and decimal points is stripped before parsing, and anything
// still unparseable (or negative) counts as zero.
func ParseCash(raw string) decimal.Decimal {
	cleaned := nonCashChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return decimal.Zero
	}
	parsed, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if parsed.IsNegative() {
		return decimal.Zero
	}
	return parsed
}
