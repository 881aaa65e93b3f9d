package export

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func testResult() *domain.TimeSeriesResult {
	t0 := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	return &domain.TimeSeriesResult{
		Domain:     "d01",
		Variable:   "T2",
		Timestamps: []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)},
		Series: []domain.PointSeries{
			{Point: domain.SamplePoint{X: 0.1, Y: 0.2, Label: "station"}, Values: []*float64{ptr(10), nil, ptr(12.5)}},
			{Point: domain.SamplePoint{X: 0.9, Y: 0.8}, Values: []*float64{ptr(20), ptr(21), ptr(22)}},
		},
	}
}

// --- XLSX ---

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testResult()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{seriesSheet, pointsSheet}, f.GetSheetList())

	cell := func(sheet, name string) string {
		v, err := f.GetCellValue(sheet, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "timestamp", cell(seriesSheet, "A1"))
	assert.Equal(t, "station", cell(seriesSheet, "B1"))
	assert.Equal(t, "point 2", cell(seriesSheet, "C1"))
	assert.Equal(t, "2024-05-01 01:00:00", cell(seriesSheet, "A3"))
	assert.Equal(t, "10", cell(seriesSheet, "B2"))
	assert.Empty(t, cell(seriesSheet, "B3"), "missing sample is blank")
	assert.Equal(t, "12.5", cell(seriesSheet, "B4"))
	assert.Equal(t, "21", cell(seriesSheet, "C3"))

	assert.Equal(t, "station", cell(pointsSheet, "A2"))
	assert.Equal(t, "0.1", cell(pointsSheet, "B2"))
	assert.Equal(t, "T2", cell(pointsSheet, "E3"))
}

func TestWriteXLSX_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, &domain.TimeSeriesResult{Variable: "T2"}))
	assert.NotZero(t, buf.Len())
}

// --- Chart ---

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, testResult(), ChartOptions{Width: 640, Height: 320}))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestWriteChart_Threshold(t *testing.T) {
	threshold := 30.0
	var buf bytes.Buffer
	err := WriteChart(&buf, testResult(), ChartOptions{Threshold: &threshold, ThresholdLabel: "red flag"})
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultChartOptions().Width, cfg.Width)
}

func TestWriteChart_SingleTimestamp(t *testing.T) {
	r := testResult()
	r.Timestamps = r.Timestamps[:1]
	for i := range r.Series {
		r.Series[i].Values = r.Series[i].Values[:1]
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, r, DefaultChartOptions()))
}

func TestWriteChart_NothingToPlot(t *testing.T) {
	r := testResult()
	for i := range r.Series {
		r.Series[i].Values = []*float64{nil, nil, nil}
	}

	err := WriteChart(&bytes.Buffer{}, r, DefaultChartOptions())
	assert.ErrorIs(t, err, ErrNothingToPlot)

	err = WriteChart(&bytes.Buffer{}, &domain.TimeSeriesResult{}, DefaultChartOptions())
	assert.ErrorIs(t, err, ErrNothingToPlot)
}
