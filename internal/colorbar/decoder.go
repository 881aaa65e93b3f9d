package colorbar

import "github.com/couchcryptid/colorbar-timeseries/internal/domain"

// Decode returns the table value whose color is nearest to c.
//
// Pure black is "no data" and decodes to the table's zero value. Exact
// matches return immediately; otherwise the entry at the smallest Manhattan
// distance wins, the earliest entry on ties. Lossy encodings rarely keep the
// legend's exact bytes, hence the nearest-match fallback.
func Decode(table *domain.CalibrationTable, c domain.RGB) float64 {
	if c == domain.Black {
		return table.ZeroValue()
	}
	if v, ok := table.Lookup(c); ok {
		return v
	}

	value := 0.0
	best := -1
	table.Each(func(e domain.CalibrationEntry) {
		if d := c.Distance(e.Color); best < 0 || d < best {
			best = d
			value = e.Value
		}
	})
	return value
}
