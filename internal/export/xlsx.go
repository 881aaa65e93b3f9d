// Package export renders finished time series as spreadsheets and charts.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

const (
	seriesSheet = "Series"
	pointsSheet = "Points"
)

// WriteXLSX writes result as a workbook: one row per timestamp and one column
// per point on the Series sheet, and the point coordinates on the Points
// sheet. Missing samples are left blank.
func WriteXLSX(w io.Writer, result *domain.TimeSeriesResult) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", seriesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(pointsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeSeries(f, result); err != nil {
		return err
	}
	if err := writePoints(f, result); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSeries(f *excelize.File, result *domain.TimeSeriesResult) error {
	header := make([]any, 0, len(result.Series)+1)
	header = append(header, "timestamp")
	for i, s := range result.Series {
		header = append(header, seriesName(i, s.Point))
	}
	if err := f.SetSheetRow(seriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for row, ts := range result.Timestamps {
		cells := make([]any, 0, len(result.Series)+1)
		cells = append(cells, ts.UTC().Format("2006-01-02 15:04:05"))
		for _, s := range result.Series {
			if v := s.Values[row]; v != nil {
				cells = append(cells, *v)
			} else {
				cells = append(cells, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(seriesSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", row+2, err)
		}
	}
	return f.SetColWidth(seriesSheet, "A", "A", 20)
}

func writePoints(f *excelize.File, result *domain.TimeSeriesResult) error {
	header := []any{"series", "x", "y", "domain", "variable"}
	if err := f.SetSheetRow(pointsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range result.Series {
		cells := []any{seriesName(i, s.Point), s.Point.X, s.Point.Y, result.Domain, result.Variable}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(pointsSheet, cell, &cells); err != nil {
			return fmt.Errorf("write point %d: %w", i, err)
		}
	}
	return nil
}

// seriesName is the point's label, or its position in the request.
func seriesName(i int, p domain.SamplePoint) string {
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("point %d", i+1)
}
