package colorbar

import (
	"math"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// tick is a level boundary found next to the band.
type tick struct {
	pos   float64
	value float64
}

// Interpolate replaces the table's normalized positions with data values
// using the tick marks drawn beside the legend band. Levels are assigned to
// tick marks from the top of the image down, starting with the last level.
//
// A legend whose distinct color count is close to the number of levels is
// stratified: each position takes the level of its nearest tick mark.
// Otherwise positions are mapped through the line defined by the first two
// tick marks.
//
// The table is left untouched when levels is empty, when the tick column lies
// outside the image, or when too few tick marks are visible.
func Interpolate(legend domain.Image, table *domain.CalibrationTable, levels domain.LevelTable, opts Options) Mode {
	if len(levels) == 0 || table.Decoded || table.EndRow <= table.StartRow {
		return ModePassthrough
	}

	ticks := findTicks(legend, table, levels, opts)
	stratified := table.Len()-opts.StratifiedMargin < len(levels)

	if stratified {
		if len(ticks) == 0 {
			return ModePassthrough
		}
		table.Map(func(pos float64) float64 {
			return nearestTick(ticks, pos).value
		})
		table.Decoded = true
		return ModeStratified
	}

	if len(ticks) < 2 || ticks[0].pos == ticks[1].pos {
		return ModePassthrough
	}
	p1, p2 := ticks[0], ticks[1]
	slope := (p2.value - p1.value) / (p2.pos - p1.pos)
	table.Map(func(pos float64) float64 {
		return slope*(pos-p1.pos) + p1.value
	})
	table.Decoded = true
	return ModeContinuous
}

// findTicks walks the tick column top to bottom. Any non-transparent pixel is
// a tick mark.
func findTicks(legend domain.Image, table *domain.CalibrationTable, levels domain.LevelTable, opts Options) []tick {
	x := table.BandLeftCol - opts.TickColumnOffset
	if x < 0 || x >= legend.Width() {
		return nil
	}

	var ticks []tick
	next := len(levels) - 1
	for y := 0; y < legend.Height() && next >= 0; y++ {
		if legend.Pixel(x, y).IsTransparent() {
			continue
		}
		ticks = append(ticks, tick{
			pos:   position(float64(y), table.StartRow, table.EndRow),
			value: levels[next],
		})
		next--
		y += opts.TickSkipRows
	}
	return ticks
}

// nearestTick returns the tick closest to pos; the first one found wins ties.
func nearestTick(ticks []tick, pos float64) tick {
	best := ticks[0]
	bestDist := math.Abs(best.pos - pos)
	for _, t := range ticks[1:] {
		if d := math.Abs(t.pos - pos); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}
