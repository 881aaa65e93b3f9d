package colorbar

import (
	"image"
	"image/color"
	"testing"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_ContinuousLegend(t *testing.T) {
	table, err := Scan(continuousLegend().draw())
	require.NoError(t, err)

	assert.Equal(t, 5, table.StartRow)
	assert.Equal(t, 34, table.EndRow)
	assert.Equal(t, 9, table.BandLeftCol)
	assert.Equal(t, 14, table.BandRightCol)
	assert.Equal(t, 30, table.Len())
	assert.False(t, table.Decoded)
}

func TestScan_PositionsSpanUnitInterval(t *testing.T) {
	table, err := Scan(continuousLegend().draw())
	require.NoError(t, err)

	ones, zeros := 0, 0
	table.Each(func(e domain.CalibrationEntry) {
		assert.GreaterOrEqual(t, e.Value, 0.0)
		assert.LessOrEqual(t, e.Value, 1.0)
		switch e.Value {
		case 1:
			ones++
		case 0:
			zeros++
		}
	})
	assert.Equal(t, 1, ones, "exactly one color at the top")
	assert.Equal(t, 1, zeros, "exactly one color at the bottom")

	rows := gradientRows(30)
	top, ok := table.Lookup(rgb(rows[0]))
	require.True(t, ok)
	assert.Equal(t, 1.0, top)
	bottom, ok := table.Lookup(rgb(rows[29]))
	require.True(t, ok)
	assert.Equal(t, 0.0, bottom)
}

func TestScan_RepeatedColorKeepsLastRow(t *testing.T) {
	table, err := Scan(stratifiedLegend().draw())
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	// red spans rows 5..12 of a band ending at row 36.
	v, ok := table.Lookup(rgb(red))
	require.True(t, ok)
	assert.InDelta(t, 1-7.0/31.0, v, 1e-9)

	entries := table.Entries()
	assert.Equal(t, rgb(red), entries[0].Color, "insertion order follows rows")
	assert.Equal(t, rgb(blue), entries[3].Color)
}

func TestScan_EmptyLegend(t *testing.T) {
	img := domain.NewImage(image.NewNRGBA(image.Rect(0, 0, 20, 40)))

	_, err := Scan(img)
	require.ErrorIs(t, err, domain.ErrEmptyLegend)
}

func TestScan_ZeroSizeLegend(t *testing.T) {
	_, err := Scan(domain.NewImage(image.NewNRGBA(image.Rect(0, 0, 0, 0))))
	require.ErrorIs(t, err, domain.ErrEmptyLegend)
}

func TestScan_SingleRowBandIsDegenerate(t *testing.T) {
	spec := legendSpec{
		width:     10,
		height:    10,
		bandLeft:  3,
		bandRight: 6,
		startRow:  5,
		rows:      []color.NRGBA{red},
	}

	table, err := Scan(spec.draw())
	require.NoError(t, err)
	assert.Equal(t, 5, table.StartRow)
	assert.Equal(t, 5, table.EndRow)
	assert.Equal(t, 1, table.Len())
	v, ok := table.Lookup(domain.Black)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestScan_BandTouchingLeftEdge(t *testing.T) {
	spec := legendSpec{
		width:     8,
		height:    20,
		bandLeft:  0,
		bandRight: 5,
		startRow:  2,
		rows:      gradientRows(16),
	}

	table, err := Scan(spec.draw())
	require.NoError(t, err)
	assert.Equal(t, 0, table.BandLeftCol)
	assert.Equal(t, 5, table.BandRightCol)
	assert.Equal(t, 16, table.Len())
}
