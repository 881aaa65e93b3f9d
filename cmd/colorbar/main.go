// Command colorbar works with raster manifests from the command line: it
// calibrates single legends, extracts time series without running the
// server, checks a manifest's images and legends, and writes a synthetic
// fixture domain for tests and demos.
//
// Usage:
//
//	go run ./cmd/colorbar fixture --out testdata/fixture
//	go run ./cmd/colorbar validate --manifest testdata/fixture/rasters.yaml
//	go run ./cmd/colorbar calibrate testdata/fixture/d01/colorbars/T2.png --levels 0,10,20,30,40
//	go run ./cmd/colorbar series --manifest testdata/fixture/rasters.yaml \
//	  --domain d01 --variable T2 --point 0.5,0.5,center --format png -o t2.png
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand.
type globalOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	var g globalOptions

	rootCmd := &cobra.Command{
		Use:   "colorbar",
		Short: "Decode colorbar-rendered rasters into time series",
		Long: `colorbar reads rasters rendered through a color legend and recovers the
underlying values, one legend calibration at a time or as a time series
across a manifest's timestamps.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newCalibrateCmd(&g),
		newSeriesCmd(&g),
		newValidateCmd(&g),
		newFixtureCmd(&g),
	)
	return rootCmd
}

// logger writes text logs to the command's stderr.
func (g *globalOptions) logger(w io.Writer) *slog.Logger {
	return observability.NewTextLogger(w, g.logLevel)
}

// metrics returns a fresh, privately registered metric set per invocation.
func (g *globalOptions) metrics() *observability.Metrics {
	return observability.NewMetricsWith(prometheus.NewRegistry())
}
