package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// Magnitude suffixes, checked in this order; only the first match applies.
var suffixes = []struct {
	letter     string
	multiplier decimal.Decimal
}{
	{"K", decimal.NewFromInt(1_000)},
	{"M", decimal.NewFromInt(1_000_000)},
	{"B", decimal.NewFromInt(1_000_000_000)},
}

// ParseMoney converts a display amount such as "$1,500", "2.5K" or "1.2M" into a
// whole number of dollars. Every failure yields 0.
func ParseMoney(s string) int64 {
	v, _ := parseMoney(s)
	return v
}

// parseMoney reports false only when a magnitude-suffixed amount fails to
// parse. A plain unparseable amount is 0 and still ok.
func parseMoney(s string) (int64, bool) {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ToUpper(strings.TrimSpace(s))

	for _, sfx := range suffixes {
		if strings.Contains(s, sfx.letter) {
			d, ok := parseNumber(strings.ReplaceAll(s, sfx.letter, ""))
			if !ok {
				return 0, false
			}
			return d.Mul(sfx.multiplier).IntPart(), true
		}
	}

	d, ok := parseNumber(s)
	if !ok {
		return 0, true
	}
	return d.IntPart(), true
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// EstimateValue derives a dollar estimate from a trade size. A range such as
// "1K–15K" yields the floor of the average of its bounds; a single amount is
// parsed as is. Unparseable sizes yield 0, as does a range with a malformed
// suffixed bound.
func EstimateValue(size string) int64 {
	if size == "" || size == model.NotAvailable {
		return 0
	}

	if strings.ContainsAny(size, "–-") {
		parts := strings.Split(strings.ReplaceAll(size, "–", "-"), "-")
		if len(parts) != 2 {
			return 0
		}
		low, ok := parseMoney(parts[0])
		if !ok {
			return 0
		}
		high, ok := parseMoney(parts[1])
		if !ok {
			return 0
		}
		return floorDiv(low+high, 2)
	}

	return ParseMoney(size)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
