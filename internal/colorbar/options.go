package colorbar

// Options holds the legend-scanning thresholds. They were tuned against
// legends rendered on a transparent or black background with black tick marks
// drawn to the left of the colored band.
type Options struct {
	// TickColumnOffset is how many columns left of the band tick marks are sampled.
	TickColumnOffset int
	// TickSkipRows is how many rows are skipped after a tick mark is found so a
	// thick mark is not counted twice.
	TickSkipRows int
	// StratifiedMargin selects stratified mode when rows-StratifiedMargin < levels.
	StratifiedMargin int
}

// DefaultOptions returns the thresholds used by the original legends.
func DefaultOptions() Options {
	return Options{
		TickColumnOffset: 5,
		TickSkipRows:     5,
		StratifiedMargin: 10,
	}
}

// Mode is the interpolation applied by Interpolate.
type Mode string

const (
	// ModePassthrough leaves normalized positions in place.
	ModePassthrough Mode = "passthrough"
	// ModeContinuous interpolates linearly between the first two tick marks.
	ModeContinuous Mode = "continuous"
	// ModeStratified snaps each position to the nearest tick mark's level.
	ModeStratified Mode = "stratified"
	// ModeEmpty is reported when the legend had no colored band at all.
	ModeEmpty Mode = "empty"
)
