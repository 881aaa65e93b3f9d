package colorbar

import (
	"fmt"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// Scan calibrates a legend image into a table of color -> normalized position.
//
// The band is located on the middle row by walking right to left: the first
// non-black column is the band's right edge and the next black column its
// left edge. The column halfway between them is then walked top to bottom,
// recording every color until the band returns to black. Sampling the middle
// of the band avoids anti-aliased edges.
func Scan(legend domain.Image) (*domain.CalibrationTable, error) {
	width, height := legend.Width(), legend.Height()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("scan legend %dx%d: %w", width, height, domain.ErrEmptyLegend)
	}

	left, right, ok := findBand(legend, height/2)
	if !ok {
		return nil, fmt.Errorf("scan legend row %d: %w", height/2, domain.ErrEmptyLegend)
	}
	x := (left + right) / 2

	startRow, endRow := -1, -1
	for y := 0; y < height; y++ {
		black := legend.Pixel(x, y).IsBlack()
		if startRow < 0 {
			if !black {
				startRow = y
			}
			continue
		}
		if black {
			endRow = y - 1
			break
		}
	}
	if startRow < 0 {
		return nil, fmt.Errorf("scan legend column %d: %w", x, domain.ErrEmptyLegend)
	}
	if endRow < 0 {
		endRow = height - 1
	}

	table := domain.NewCalibrationTable()
	table.StartRow = startRow
	table.EndRow = endRow
	table.BandLeftCol = left
	table.BandRightCol = right

	if endRow <= startRow {
		table.Set(domain.Black, 0)
		return table, nil
	}

	for y := startRow; y <= endRow; y++ {
		table.Set(legend.Pixel(x, y).RGB(), float64(y))
	}
	table.Map(func(row float64) float64 {
		return position(row, startRow, endRow)
	})
	return table, nil
}

// findBand scans row y from the right edge and returns the band's left and
// right columns. A band that runs into column 0 gets left = 0.
func findBand(legend domain.Image, y int) (left, right int, ok bool) {
	right = -1
	for x := legend.Width() - 1; x > 0; x-- {
		black := legend.Pixel(x, y).IsBlack()
		if right < 0 {
			if !black {
				right = x
			}
			continue
		}
		if black {
			return x, right, true
		}
	}
	if right < 0 {
		return 0, 0, false
	}
	return 0, right, true
}

// position maps a row to [0,1] with startRow at 1 and endRow at 0.
func position(row float64, startRow, endRow int) float64 {
	return 1 - (row-float64(startRow))/float64(endRow-startRow)
}
