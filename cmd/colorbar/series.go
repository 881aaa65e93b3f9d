package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/colorbar-timeseries/internal/adapter/fetch"
	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/colorbar"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/export"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
	"github.com/couchcryptid/colorbar-timeseries/internal/timeseries"
)

type seriesOptions struct {
	manifest       string
	rasterBase     string
	domain         string
	variable       string
	start          string
	end            string
	points         []string
	format         string
	output         string
	threshold      float64
	thresholdLabel string
	workers        int
	maxImageHeight int
	timeout        time.Duration
}

func newSeriesCmd(g *globalOptions) *cobra.Command {
	var o seriesOptions
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Extract a time series for points of one variable",
		Long: `series decodes one variable at each --point for every manifest timestamp
in [--start, --end] and writes the result as JSON, an XLSX workbook or a PNG
chart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var threshold *float64
			if cmd.Flags().Changed("threshold") {
				threshold = &o.threshold
			}
			return runSeries(cmd, g, o, threshold)
		},
	}
	cmd.Flags().StringVar(&o.manifest, "manifest", "", "Raster manifest (YAML or JSON)")
	cmd.Flags().StringVar(&o.rasterBase, "raster-base", "", "Override the manifest's raster base")
	cmd.Flags().StringVar(&o.domain, "domain", "", "Domain to read (default: first listed)")
	cmd.Flags().StringVar(&o.variable, "variable", "", "Variable to decode")
	cmd.Flags().StringVar(&o.start, "start", "", "First timestamp (default: open)")
	cmd.Flags().StringVar(&o.end, "end", "", "Last timestamp (default: open)")
	cmd.Flags().StringArrayVarP(&o.points, "point", "p", nil, "Sample point as x,y[,label] in [0,1]; repeatable")
	cmd.Flags().StringVar(&o.format, "format", "json", "Output format: json, xlsx, png")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().Float64Var(&o.threshold, "threshold", 0, "Draw a threshold line on png output")
	cmd.Flags().StringVar(&o.thresholdLabel, "threshold-label", "threshold", "Legend label of the threshold line")
	cmd.Flags().IntVar(&o.workers, "workers", 4, "Concurrent image loads")
	cmd.Flags().IntVar(&o.maxImageHeight, "max-image-height", 10000, "Sample taller images at a reduced scale; 0 disables")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Fetch timeout for URLs")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("variable")
	_ = cmd.MarkFlagRequired("point")
	return cmd
}

func runSeries(cmd *cobra.Command, g *globalOptions, o seriesOptions, threshold *float64) error {
	switch o.format {
	case "json", "xlsx", "png":
	default:
		return fmt.Errorf("unsupported format %q", o.format)
	}
	if o.maxImageHeight < 0 {
		return fmt.Errorf("--max-image-height must be non-negative, got %d", o.maxImageHeight)
	}

	req, err := o.request()
	if err != nil {
		return err
	}

	logger := g.logger(cmd.ErrOrStderr())
	metrics := g.metrics()

	cat, err := catalog.Load(o.manifest)
	if err != nil {
		return err
	}
	if o.rasterBase != "" {
		cat.SetBase(o.rasterBase)
	}
	name := o.domain
	if name == "" {
		domains := cat.Domains()
		if len(domains) == 0 {
			return errors.New("manifest lists no domains")
		}
		name = domains[0]
	}

	cache := imagestore.NewCache(fetch.NewClient(o.timeout, logger), logger, metrics)
	scheduler := imagestore.NewScheduler(cache, o.workers, logger, metrics)
	defer scheduler.Stop()

	calibrator := colorbar.NewCachedCalibrator(
		colorbar.NewCalibrator(colorbar.DefaultOptions(), logger, metrics), 64, metrics)
	engine := timeseries.New(cat, cache, scheduler, calibrator, logger, metrics, timeseries.Options{MaxImageHeight: o.maxImageHeight})

	if err := engine.SwitchDomain(name); err != nil {
		return err
	}
	result, err := engine.Generate(cmd.Context(), req, func(p float64) {
		logger.Debug("progress", "fraction", p)
	})
	if err != nil {
		return err
	}
	if missing := result.Missing(); missing > 0 {
		logger.Warn("series has missing samples", "missing", missing)
	}

	w, closeOutput, err := openOutput(cmd.OutOrStdout(), o.output)
	if err != nil {
		return err
	}
	if err := writeSeries(w, result, o, threshold); err != nil {
		_ = closeOutput()
		return err
	}
	return closeOutput()
}

func writeSeries(w io.Writer, result *domain.TimeSeriesResult, o seriesOptions, threshold *float64) error {
	switch o.format {
	case "xlsx":
		return export.WriteXLSX(w, result)
	case "png":
		opts := export.DefaultChartOptions()
		opts.Threshold = threshold
		opts.ThresholdLabel = o.thresholdLabel
		return export.WriteChart(w, result, opts)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func (o seriesOptions) request() (domain.TimeSeriesRequest, error) {
	req := domain.TimeSeriesRequest{Variable: o.variable}
	var err error
	if o.start != "" {
		if req.Start, err = catalog.ParseTimestamp(o.start); err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
	}
	if o.end != "" {
		if req.End, err = catalog.ParseTimestamp(o.end); err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
	}
	for _, s := range o.points {
		p, err := parsePoint(s)
		if err != nil {
			return req, err
		}
		req.Points = append(req.Points, p)
	}
	return req, nil
}

// parsePoint reads "x,y" or "x,y,label".
func parsePoint(s string) (domain.SamplePoint, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 2 {
		return domain.SamplePoint{}, fmt.Errorf("point %q: want x,y[,label]", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.SamplePoint{}, fmt.Errorf("point %q: x: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.SamplePoint{}, fmt.Errorf("point %q: y: %w", s, err)
	}
	p := domain.SamplePoint{X: x, Y: y}
	if len(parts) == 3 {
		p.Label = strings.TrimSpace(parts[2])
	}
	if !p.Valid() {
		return domain.SamplePoint{}, fmt.Errorf("point %q: coordinates must lie in [0,1]", s)
	}
	return p, nil
}

// openOutput returns stdout for an empty path or "-", otherwise a new file.
func openOutput(stdout io.Writer, p string) (io.Writer, func() error, error) {
	if p == "" || p == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
