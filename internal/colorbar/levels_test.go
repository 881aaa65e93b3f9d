package colorbar

import (
	"testing"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanned(t *testing.T, spec legendSpec) (domain.Image, *domain.CalibrationTable) {
	t.Helper()
	img := spec.draw()
	table, err := Scan(img)
	require.NoError(t, err)
	return img, table
}

func TestInterpolate_ContinuousIsAffine(t *testing.T) {
	img, table := scanned(t, continuousLegend())
	positions := table.Entries()

	mode := Interpolate(img, table, domain.LevelTable{0, 100}, DefaultOptions())
	require.Equal(t, ModeContinuous, mode)
	assert.True(t, table.Decoded)

	// Ticks at the first and last band rows give value = 100 * position.
	for i, e := range table.Entries() {
		assert.InDelta(t, 100*positions[i].Value, e.Value, 1e-9, "color %s", e.Color)
	}
}

func TestInterpolate_ContinuousDescendingLevels(t *testing.T) {
	img, table := scanned(t, continuousLegend())
	rows := gradientRows(30)

	mode := Interpolate(img, table, domain.LevelTable{50, -10}, DefaultOptions())
	require.Equal(t, ModeContinuous, mode)

	top, _ := table.Lookup(rgb(rows[0]))
	bottom, _ := table.Lookup(rgb(rows[29]))
	assert.InDelta(t, -10, top, 1e-9)
	assert.InDelta(t, 50, bottom, 1e-9)
}

func TestInterpolate_StratifiedSnapsToLevels(t *testing.T) {
	img, table := scanned(t, stratifiedLegend())
	levels := domain.LevelTable{10, 20, 30, 40}

	mode := Interpolate(img, table, levels, DefaultOptions())
	require.Equal(t, ModeStratified, mode)

	table.Each(func(e domain.CalibrationEntry) {
		assert.Contains(t, []float64(levels), e.Value, "color %s", e.Color)
	})

	want := map[domain.RGB]float64{
		rgb(red):    40,
		rgb(yellow): 30,
		rgb(green):  20,
		rgb(blue):   10,
	}
	for c, v := range want {
		got, ok := table.Lookup(c)
		require.True(t, ok)
		assert.Equal(t, v, got, "color %s", c)
	}
}

func TestInterpolate_NoLevelsIsPassthrough(t *testing.T) {
	img, table := scanned(t, continuousLegend())
	before := table.Entries()

	mode := Interpolate(img, table, nil, DefaultOptions())

	assert.Equal(t, ModePassthrough, mode)
	assert.False(t, table.Decoded)
	assert.Equal(t, before, table.Entries())
}

func TestInterpolate_SingleTickIsPassthrough(t *testing.T) {
	spec := continuousLegend()
	spec.ticks = []int{5}
	img, table := scanned(t, spec)
	before := table.Entries()

	mode := Interpolate(img, table, domain.LevelTable{0, 100}, DefaultOptions())

	assert.Equal(t, ModePassthrough, mode)
	assert.Equal(t, before, table.Entries())
}

func TestInterpolate_TickColumnOutsideImage(t *testing.T) {
	img, table := scanned(t, continuousLegend())
	opts := DefaultOptions()
	opts.TickColumnOffset = 50

	assert.Equal(t, ModePassthrough, Interpolate(img, table, domain.LevelTable{0, 100}, opts))
}

func TestInterpolate_ThickTickCountsOnce(t *testing.T) {
	spec := continuousLegend()
	// A three-pixel tick at the top plus one at the bottom.
	spec.ticks = []int{5, 6, 7, 34}
	img, table := scanned(t, spec)
	rows := gradientRows(30)

	mode := Interpolate(img, table, domain.LevelTable{0, 100}, DefaultOptions())
	require.Equal(t, ModeContinuous, mode)

	bottom, _ := table.Lookup(rgb(rows[29]))
	assert.InDelta(t, 0, bottom, 1e-9)
}

func TestInterpolate_AlreadyDecodedIsUntouched(t *testing.T) {
	img, table := scanned(t, continuousLegend())
	Interpolate(img, table, domain.LevelTable{0, 100}, DefaultOptions())
	decoded := table.Entries()

	mode := Interpolate(img, table, domain.LevelTable{0, 1000}, DefaultOptions())

	assert.Equal(t, ModePassthrough, mode)
	assert.Equal(t, decoded, table.Entries())
}

func TestNearestTick_FirstWinsTies(t *testing.T) {
	ticks := []tick{{pos: 0.75, value: 1}, {pos: 0.25, value: 2}}
	assert.Equal(t, 1.0, nearestTick(ticks, 0.5).value)
	assert.Equal(t, 2.0, nearestTick(ticks, 0.3).value)
}
