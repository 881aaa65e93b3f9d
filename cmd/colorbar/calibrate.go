package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/colorbar-timeseries/internal/adapter/fetch"
	"github.com/couchcryptid/colorbar-timeseries/internal/colorbar"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

type calibrateOptions struct {
	levels  []float64
	opts    colorbar.Options
	timeout time.Duration
	pretty  bool
}

// calibrationReport is what calibrate prints.
type calibrationReport struct {
	Legend string                   `json:"legend"`
	Width  int                      `json:"width"`
	Height int                      `json:"height"`
	Mode   colorbar.Mode            `json:"mode"`
	Colors int                      `json:"colors"`
	Table  *domain.CalibrationTable `json:"table,omitempty"`
}

func newCalibrateCmd(g *globalOptions) *cobra.Command {
	o := calibrateOptions{opts: colorbar.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "calibrate [legend]",
		Short: "Print the color table recovered from one legend image",
		Long: `calibrate scans a legend image (path or URL) and prints its color table.
With --levels the table holds data values, otherwise normalized positions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger(cmd.ErrOrStderr())
			client := fetch.NewClient(o.timeout, logger)

			legend, err := client.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			report := calibrationReport{
				Legend: args[0],
				Width:  legend.Width(),
				Height: legend.Height(),
			}
			table, err := colorbar.Scan(legend)
			if err != nil {
				return fmt.Errorf("calibrate %s: %w", args[0], err)
			}
			report.Mode = colorbar.Interpolate(legend, table, o.levels, o.opts)
			report.Colors = table.Len()
			report.Table = table

			enc := json.NewEncoder(cmd.OutOrStdout())
			if o.pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(report)
		},
	}
	cmd.Flags().Float64SliceVar(&o.levels, "levels", nil, "Level breaks, comma separated")
	cmd.Flags().IntVar(&o.opts.TickColumnOffset, "tick-offset", o.opts.TickColumnOffset, "Columns between band edge and tick marks")
	cmd.Flags().IntVar(&o.opts.TickSkipRows, "tick-skip", o.opts.TickSkipRows, "Rows skipped after each tick mark")
	cmd.Flags().IntVar(&o.opts.StratifiedMargin, "stratified-margin", o.opts.StratifiedMargin, "Stratified when colors minus margin < levels")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Fetch timeout for URLs")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}
