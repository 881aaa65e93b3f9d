package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// ErrNothingToPlot is returned when every sample is missing.
var ErrNothingToPlot = errors.New("no values to plot")

// ChartOptions controls PNG rendering.
type ChartOptions struct {
	Width, Height int
	// Threshold draws a dashed horizontal line when set.
	Threshold *float64
	// ThresholdLabel names the threshold line in the legend.
	ThresholdLabel string
}

// DefaultChartOptions returns an 800x400 chart without a threshold.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 800, Height: 400}
}

// WriteChart renders result as a PNG line chart with one line per point.
// Missing samples leave gaps.
func WriteChart(w io.Writer, result *domain.TimeSeriesResult, opts ChartOptions) error {
	times := result.Timestamps
	if len(times) == 0 {
		return ErrNothingToPlot
	}
	// A single timestamp is stretched to a flat segment so the x range is not empty.
	if len(times) == 1 {
		times = []time.Time{times[0], times[0].Add(time.Hour)}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(result.Series)+1)
	for i, s := range result.Series {
		ys := make([]float64, len(times))
		for j := range ys {
			v := s.Values[min(j, len(s.Values)-1)]
			if v == nil {
				ys[j] = math.NaN()
				continue
			}
			ys[j] = *v
			lo, hi = math.Min(lo, *v), math.Max(hi, *v)
		}
		series = append(series, chart.TimeSeries{
			Name:    seriesName(i, s.Point),
			XValues: times,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}
	if math.IsInf(lo, 1) {
		return ErrNothingToPlot
	}

	if opts.Threshold != nil {
		t := *opts.Threshold
		lo, hi = math.Min(lo, t), math.Max(hi, t)
		label := opts.ThresholdLabel
		if label == "" {
			label = fmt.Sprintf("threshold %g", t)
		}
		series = append(series, chart.TimeSeries{
			Name:    label,
			XValues: []time.Time{times[0], times[len(times)-1]},
			YValues: []float64{t, t},
			Style: chart.Style{
				StrokeColor:     drawing.ColorRed,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{6, 4},
			},
		})
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		d := DefaultChartOptions()
		width, height = d.Width, d.Height
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s (%s)", result.Variable, result.Domain),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Time (UTC)",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name:  result.Variable,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
