package domain

import "time"

// dateLayouts are tried in order when parsing a date-like fallback field.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ResolveYear extracts the year a record belongs to. An explicit numeric year
// (or calculation_year) wins; otherwise the date-like fields are probed in a
// fixed order and the first one that parses supplies its calendar year.
// Returns (0, false) when nothing resolves.
func ResolveYear(raw RawPoint) (int, bool) {
	if raw.Year != nil && *raw.Year > 0 {
		return *raw.Year, true
	}
	if raw.CalculationYear != nil && *raw.CalculationYear > 0 {
		return *raw.CalculationYear, true
	}

	for _, field := range []string{raw.SampleDate, raw.ComputedAt, raw.CreatedAt, raw.Date} {
		if field == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, field); err == nil {
				return t.Year(), true
			}
		}
	}
	return 0, false
}
