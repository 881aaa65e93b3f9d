package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// fixtureStart is the first frame of a generated fixture.
var fixtureStart = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

// Legend geometry shared by both fixture legends. The band starts at
// bandLeft, so the scanner reports bandLeft-1 as its left edge and ticks are
// drawn TickColumnOffset columns further left.
const (
	legendWidth = 40
	bandLeft    = 20
	bandRight   = 29
	bandTop     = 10
	tickColumn  = bandLeft - 1 - 5
)

// Continuous T2 legend: 201 rows spanning 0..40 with a tick every 50 rows.
const (
	continuousRows    = 201
	continuousTickGap = 50
)

var continuousLevels = domain.LevelTable{0, 10, 20, 30, 40}

// rampStops run bottom (low) to top (high).
var rampStops = []color.NRGBA{
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
}

// Stratified RAIN legend: one 20-row stratum per level, tick on each
// stratum's last row.
const stratumRows = 20

var stratifiedLevels = domain.LevelTable{0, 1, 5, 10, 25}

// strataColors are listed bottom to top, one per stratified level.
var strataColors = []color.NRGBA{
	{R: 200, G: 200, B: 200, A: 255},
	{R: 50, G: 205, B: 50, A: 255},
	{R: 255, G: 165, B: 0, A: 255},
	{R: 220, G: 20, B: 60, A: 255},
	{R: 128, G: 0, B: 128, A: 255},
}

// fixtureDomain describes one generated domain.
type fixtureDomain struct {
	name   string
	width  int
	height int
	step   time.Duration
}

type fixtureOptions struct {
	out   string
	hours int
}

// fixtureManifest mirrors the manifest layout catalog.Load reads.
type fixtureManifest struct {
	Domains map[string]map[string]map[string]catalog.RasterInfo `yaml:"domains"`
}

func newFixtureCmd(g *globalOptions) *cobra.Command {
	var o fixtureOptions
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Write a synthetic manifest with rasters and legends",
		Long: `fixture renders two domains of synthetic rasters through a continuous
legend (T2) and a stratified legend (RAIN), together with rasters.yaml.
Output is deterministic, so it can be checked in as test data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := g.logger(cmd.ErrOrStderr())
			manifest, err := writeFixture(o)
			if err != nil {
				return err
			}
			logger.Info("fixture written", "manifest", manifest)
			fmt.Fprintln(cmd.OutOrStdout(), manifest)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.out, "out", "", "Output directory")
	cmd.Flags().IntVar(&o.hours, "hours", 6, "Hours covered by each domain")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// writeFixture renders every image and returns the manifest path.
func writeFixture(o fixtureOptions) (string, error) {
	if o.hours < 1 {
		return "", fmt.Errorf("hours must be at least 1, got %d", o.hours)
	}

	domains := []fixtureDomain{
		{name: "d01", width: 120, height: 80, step: time.Hour},
		{name: "d02", width: 240, height: 160, step: 2 * time.Hour},
	}

	m := fixtureManifest{Domains: make(map[string]map[string]map[string]catalog.RasterInfo)}
	for _, d := range domains {
		t2Legend := path.Join(d.name, "colorbars", "T2.png")
		rainLegend := path.Join(d.name, "colorbars", "RAIN.png")
		if err := writePNG(o.out, t2Legend, continuousLegend()); err != nil {
			return "", err
		}
		if err := writePNG(o.out, rainLegend, stratifiedLegend()); err != nil {
			return "", err
		}

		frames := make(map[string]map[string]catalog.RasterInfo)
		end := fixtureStart.Add(time.Duration(o.hours-1) * time.Hour)
		for ts := fixtureStart; !ts.After(end); ts = ts.Add(d.step) {
			hour := int(ts.Sub(fixtureStart) / time.Hour)
			dir := path.Join(d.name, ts.Format("20060102_1504"))
			t2 := path.Join(dir, "T2.png")
			rain := path.Join(dir, "RAIN.png")
			if err := writePNG(o.out, t2, renderRaster(d, hour, t2Color)); err != nil {
				return "", err
			}
			if err := writePNG(o.out, rain, renderRaster(d, hour, rainColor)); err != nil {
				return "", err
			}
			frames[ts.Format("2006-01-02 15:04:05")] = map[string]catalog.RasterInfo{
				"T2":   {Raster: t2, Colorbar: t2Legend, Levels: continuousLevels},
				"RAIN": {Raster: rain, Colorbar: rainLegend, Levels: stratifiedLevels},
			}
		}
		m.Domains[d.name] = frames
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	manifest := filepath.Join(o.out, "rasters.yaml")
	if err := os.WriteFile(manifest, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return manifest, nil
}

// t2Value is the temperature field: a west-east gradient with a small
// diurnal swing, always inside the legend's 0..40 range.
func t2Value(x, y float64, hour int) float64 {
	return 10 + 20*x + 5*y + float64(hour%4)
}

// rainValue is a rain cell drifting east one tenth of the domain per hour.
func rainValue(x, y float64, hour int) float64 {
	cx := 0.2 + 0.1*float64(hour%8)
	r := math.Hypot(x-cx, y-0.5)
	switch {
	case r < 0.1:
		return 25
	case r < 0.2:
		return 10
	case r < 0.3:
		return 5
	case r < 0.4:
		return 1
	default:
		return 0
	}
}

// continuousRow is the legend row holding value v.
func continuousRow(v float64) int {
	top := continuousLevels[len(continuousLevels)-1]
	bottom := continuousLevels[0]
	v = math.Max(bottom, math.Min(top, v))
	span := float64(continuousRows - 1)
	return bandTop + int(math.Round((top-v)/(top-bottom)*span))
}

func t2Color(x, y float64, hour int) color.NRGBA {
	row := continuousRow(t2Value(x, y, hour))
	return rampColor(1 - float64(row-bandTop)/float64(continuousRows-1))
}

func rainColor(x, y float64, hour int) color.NRGBA {
	v := rainValue(x, y, hour)
	for i, level := range stratifiedLevels {
		if level == v {
			return strataColors[i]
		}
	}
	return strataColors[0]
}

// rampColor interpolates rampStops at t in [0,1].
func rampColor(t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	scaled := t * float64(len(rampStops)-1)
	i := int(scaled)
	if i >= len(rampStops)-1 {
		return rampStops[len(rampStops)-1]
	}
	frac := scaled - float64(i)
	a, b := rampStops[i], rampStops[i+1]
	lerp := func(p, q uint8) uint8 {
		return uint8(math.Round(float64(p) + (float64(q)-float64(p))*frac))
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// renderRaster evaluates a field at every pixel center.
func renderRaster(d fixtureDomain, hour int, field func(x, y float64, hour int) color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	for py := 0; py < d.height; py++ {
		for px := 0; px < d.width; px++ {
			x := (float64(px) + 0.5) / float64(d.width)
			y := (float64(py) + 0.5) / float64(d.height)
			img.SetNRGBA(px, py, field(x, y, hour))
		}
	}
	return img
}

// continuousLegend draws the T2 ramp with high values at the top.
func continuousLegend() image.Image {
	height := bandTop + continuousRows + bandTop
	img := image.NewNRGBA(image.Rect(0, 0, legendWidth, height))
	for i := 0; i < continuousRows; i++ {
		c := rampColor(1 - float64(i)/float64(continuousRows-1))
		fillRow(img, bandTop+i, c)
	}
	for y := bandTop; y < bandTop+continuousRows; y += continuousTickGap {
		drawTick(img, y)
	}
	return img
}

// stratifiedLegend draws one solid stratum per RAIN level, highest on top.
func stratifiedLegend() image.Image {
	n := len(strataColors)
	height := bandTop + n*stratumRows + bandTop
	img := image.NewNRGBA(image.Rect(0, 0, legendWidth, height))
	for s := 0; s < n; s++ {
		c := strataColors[n-1-s]
		top := bandTop + s*stratumRows
		for y := top; y < top+stratumRows; y++ {
			fillRow(img, y, c)
		}
		drawTick(img, top+stratumRows-1)
	}
	return img
}

func fillRow(img *image.NRGBA, y int, c color.NRGBA) {
	for x := bandLeft; x <= bandRight; x++ {
		img.SetNRGBA(x, y, c)
	}
}

// drawTick puts an opaque black mark across the tick column.
func drawTick(img *image.NRGBA, y int) {
	black := color.NRGBA{A: 255}
	for x := tickColumn - 2; x <= tickColumn+2; x++ {
		img.SetNRGBA(x, y, black)
	}
}

func writePNG(root, rel string, img image.Image) error {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(p), err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return f.Close()
}
