package colorbar

import (
	"errors"
	"log/slog"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

// Calibrator turns a legend image and its levels into a decoded table.
type Calibrator struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCalibrator creates a Calibrator with the given scanning thresholds.
func NewCalibrator(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Calibrator {
	return &Calibrator{opts: opts, logger: logger, metrics: metrics}
}

// Calibrate scans the legend and interpolates its levels. The key only
// identifies the legend in logs.
func (c *Calibrator) Calibrate(key string, legend domain.Image, levels domain.LevelTable) (*domain.CalibrationTable, error) {
	table, err := Scan(legend)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyLegend) {
			c.metrics.Calibrations.WithLabelValues(string(ModeEmpty)).Inc()
		}
		return nil, err
	}
	mode := Interpolate(legend, table, levels, c.opts)
	c.metrics.Calibrations.WithLabelValues(string(mode)).Inc()
	c.logger.Debug("legend calibrated",
		"legend", key,
		"mode", mode,
		"colors", table.Len(),
		"start_row", table.StartRow,
		"end_row", table.EndRow,
	)
	return table, nil
}
