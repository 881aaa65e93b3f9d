package colorbar

import (
	"image"
	"image/color"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// --- synthetic legends ---

// legendSpec describes a legend drawn on a transparent background: a band of
// one color per row in columns [bandLeft, bandRight] starting at startRow, and
// one-pixel black tick marks in column tickCol.
type legendSpec struct {
	width, height       int
	bandLeft, bandRight int
	startRow            int
	rows                []color.NRGBA
	tickCol             int
	ticks               []int
}

func (s legendSpec) draw() domain.Image {
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	for i, c := range s.rows {
		for x := s.bandLeft; x <= s.bandRight; x++ {
			img.SetNRGBA(x, s.startRow+i, c)
		}
	}
	for _, y := range s.ticks {
		img.SetNRGBA(s.tickCol, y, color.NRGBA{A: 255})
	}
	return domain.NewImage(img)
}

// gradientRows returns n distinct opaque colors, top to bottom.
func gradientRows(n int) []color.NRGBA {
	rows := make([]color.NRGBA, n)
	for i := range rows {
		rows[i] = color.NRGBA{R: uint8(8 * i), G: uint8(255 - 8*i), B: 100, A: 255}
	}
	return rows
}

// strataRows repeats each color for height rows.
func strataRows(height int, colors ...color.NRGBA) []color.NRGBA {
	var rows []color.NRGBA
	for _, c := range colors {
		for i := 0; i < height; i++ {
			rows = append(rows, c)
		}
	}
	return rows
}

// continuousLegend is a 30-row gradient in columns 10..14, rows 5..34, with
// tick marks at the top and bottom rows. The band's left black column is 9,
// so ticks sit in column 4.
func continuousLegend() legendSpec {
	return legendSpec{
		width:     20,
		height:    40,
		bandLeft:  10,
		bandRight: 14,
		startRow:  5,
		rows:      gradientRows(30),
		tickCol:   4,
		ticks:     []int{5, 34},
	}
}

var (
	red    = color.NRGBA{R: 255, A: 255}
	yellow = color.NRGBA{R: 255, G: 255, A: 255}
	green  = color.NRGBA{G: 255, A: 255}
	blue   = color.NRGBA{B: 255, A: 255}
)

// stratifiedLegend has four 8-row strata in rows 5..36 with a tick mark on
// the last row of each stratum.
func stratifiedLegend() legendSpec {
	return legendSpec{
		width:     20,
		height:    42,
		bandLeft:  10,
		bandRight: 14,
		startRow:  5,
		rows:      strataRows(8, red, yellow, green, blue),
		tickCol:   4,
		ticks:     []int{12, 20, 28, 36},
	}
}

func rgb(c color.NRGBA) domain.RGB {
	return domain.RGB{R: c.R, G: c.G, B: c.B}
}
