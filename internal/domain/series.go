package domain

import "time"

// SamplePoint is a position normalized to a data image's bounding box,
// X from the left edge and Y from the top edge, both in [0,1].
type SamplePoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// Valid reports whether the point lies within the unit square.
func (p SamplePoint) Valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// PixelAt converts the point to pixel coordinates for an image of the given
// size, clamped to the last row and column.
func (p SamplePoint) PixelAt(width, height int) (int, int) {
	return clampIndex(p.X, width), clampIndex(p.Y, height)
}

func clampIndex(f float64, n int) int {
	i := int(f * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// TimeSeriesRequest asks for the values of Variable at Points over the
// inclusive range [Start, End] of the active domain.
type TimeSeriesRequest struct {
	Variable string        `json:"variable"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Points   []SamplePoint `json:"points"`
}

// PointSeries holds one point's values aligned to TimeSeriesResult.Timestamps.
// A nil value is a missing sample.
type PointSeries struct {
	Point  SamplePoint `json:"point"`
	Values []*float64  `json:"values"`
}

// TimeSeriesResult is an ordered series shared by every requested point.
type TimeSeriesResult struct {
	Domain      string        `json:"domain"`
	Variable    string        `json:"variable"`
	Timestamps  []time.Time   `json:"timestamps"`
	Series      []PointSeries `json:"series"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Missing counts nil samples across all series.
func (r *TimeSeriesResult) Missing() int {
	n := 0
	for _, s := range r.Series {
		for _, v := range s.Values {
			if v == nil {
				n++
			}
		}
	}
	return n
}

// PointValue is the color and decoded value at one point and timestamp.
type PointValue struct {
	Timestamp time.Time   `json:"timestamp"`
	Point     SamplePoint `json:"point"`
	Color     RGB         `json:"color"`
	Value     float64     `json:"value"`
}
