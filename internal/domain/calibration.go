package domain

import "encoding/json"

// CalibrationEntry pairs a legend color with either its normalized position
// along the legend (1 = top, 0 = bottom) or, once decoded, its data value.
type CalibrationEntry struct {
	Color RGB
	Value float64
}

// CalibrationTable maps legend colors to positions or decoded values.
// Entries keep first-insertion order; overwriting a color updates its value
// in place.
type CalibrationTable struct {
	entries []CalibrationEntry
	index   map[RGB]int

	// StartRow and EndRow bound the colored band vertically.
	StartRow int
	EndRow   int
	// BandLeftCol and BandRightCol bound the horizontal band that was sampled.
	BandLeftCol  int
	BandRightCol int

	// Decoded is set once entry values hold data values rather than positions.
	Decoded bool
}

// NewCalibrationTable returns an empty table.
func NewCalibrationTable() *CalibrationTable {
	return &CalibrationTable{index: make(map[RGB]int)}
}

// Set stores v for c, keeping c's original position when it already exists.
func (t *CalibrationTable) Set(c RGB, v float64) {
	if t.index == nil {
		t.index = make(map[RGB]int)
	}
	if i, ok := t.index[c]; ok {
		t.entries[i].Value = v
		return
	}
	t.index[c] = len(t.entries)
	t.entries = append(t.entries, CalibrationEntry{Color: c, Value: v})
}

// Lookup returns the stored value for an exact color.
func (t *CalibrationTable) Lookup(c RGB) (float64, bool) {
	i, ok := t.index[c]
	if !ok {
		return 0, false
	}
	return t.entries[i].Value, true
}

// Len returns the number of distinct colors.
func (t *CalibrationTable) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries in insertion order.
func (t *CalibrationTable) Entries() []CalibrationEntry {
	out := make([]CalibrationEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Each calls fn for every entry in insertion order.
func (t *CalibrationTable) Each(fn func(CalibrationEntry)) {
	for _, e := range t.entries {
		fn(e)
	}
}

// Map rewrites every entry's value in place.
func (t *CalibrationTable) Map(fn func(float64) float64) {
	for i := range t.entries {
		t.entries[i].Value = fn(t.entries[i].Value)
	}
}

// ZeroValue is what pure black decodes to: black's own entry when the legend
// has one, otherwise 0.
func (t *CalibrationTable) ZeroValue() float64 {
	if v, ok := t.Lookup(Black); ok {
		return v
	}
	return 0
}

// Clone returns a deep copy.
func (t *CalibrationTable) Clone() *CalibrationTable {
	c := *t
	c.entries = t.Entries()
	c.index = make(map[RGB]int, len(t.index))
	for k, v := range t.index {
		c.index[k] = v
	}
	return &c
}

// MarshalJSON renders the table for diagnostics.
func (t *CalibrationTable) MarshalJSON() ([]byte, error) {
	type entry struct {
		Color RGB     `json:"color"`
		Value float64 `json:"value"`
	}
	entries := make([]entry, len(t.entries))
	for i, e := range t.entries {
		entries[i] = entry(e)
	}
	return json.Marshal(struct {
		StartRow     int     `json:"start_row"`
		EndRow       int     `json:"end_row"`
		BandLeftCol  int     `json:"band_left_col"`
		BandRightCol int     `json:"band_right_col"`
		Decoded      bool    `json:"decoded"`
		Entries      []entry `json:"entries"`
	}{t.StartRow, t.EndRow, t.BandLeftCol, t.BandRightCol, t.Decoded, entries})
}

// LevelTable is the ordered list of level breakpoints authored for a legend,
// ascending or descending. A nil LevelTable means the legend is continuous
// and positions are used as values.
type LevelTable []float64
