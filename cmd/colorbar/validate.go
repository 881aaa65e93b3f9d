package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/colorbar-timeseries/internal/adapter/fetch"
	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/colorbar"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

// errValidationFailed is returned when any phase reports an error.
var errValidationFailed = errors.New("validation failed")

type validateOptions struct {
	manifest   string
	rasterBase string
	workers    int
	timeout    time.Duration
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// legendRef is one distinct legend and level table pair.
type legendRef struct {
	url    string
	levels domain.LevelTable
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	var o validateOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that every manifest image loads and every legend calibrates",
		Long: `validate runs three phases over a manifest: structure (timestamps, paths
and level tables), image availability (every raster and legend loads) and
legend calibration (every legend yields a colored band and, when levels are
given, a decoded table).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), g, o)
		},
	}
	cmd.Flags().StringVar(&o.manifest, "manifest", "", "Raster manifest (YAML or JSON)")
	cmd.Flags().StringVar(&o.rasterBase, "raster-base", "", "Override the manifest's raster base")
	cmd.Flags().IntVar(&o.workers, "workers", 8, "Concurrent image loads")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Fetch timeout for URLs")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runValidate(ctx context.Context, out, stderr io.Writer, g *globalOptions, o validateOptions) error {
	logger := g.logger(stderr)

	cat, err := catalog.Load(o.manifest)
	if err != nil {
		return err
	}
	if o.rasterBase != "" {
		cat.SetBase(o.rasterBase)
	}

	fmt.Fprintln(out, "=== Raster Manifest Validation ===")
	fmt.Fprintln(out)

	structure, urls, legends := validateStructure(cat)
	availability, images := validateImages(ctx, fetch.NewClient(o.timeout, logger), urls, o.workers)
	calibration, modes := validateLegends(legends, images)

	phases := []*phase{structure, availability, calibration}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-30s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Domains: %d, images: %d, legends: %d\n", len(cat.Domains()), len(urls), len(legends))
	modeNames := make([]string, 0, len(modes))
	for m := range modes {
		modeNames = append(modeNames, string(m))
	}
	sort.Strings(modeNames)
	for _, m := range modeNames {
		fmt.Fprintf(out, "  %-12s %d\n", m, modes[colorbar.Mode(m)])
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return nil
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return errValidationFailed
}

// validateStructure checks the manifest itself and collects the resolved
// image URLs and distinct legends it references.
func validateStructure(cat *catalog.Catalog) (*phase, []string, []legendRef) {
	p := &phase{name: "Manifest structure"}
	seenURL := make(map[string]bool)
	seenLegend := make(map[string]bool)
	var urls []string
	var legends []legendRef

	addURL := func(u string) {
		if !seenURL[u] {
			seenURL[u] = true
			urls = append(urls, u)
		}
	}

	domains := cat.Domains()
	if len(domains) == 0 {
		p.errorf("manifest lists no domains")
	}
	for _, name := range domains {
		frames, err := cat.Frames(name)
		if err != nil {
			p.errorf("%s: %v", name, err)
			continue
		}
		if len(frames) == 0 {
			p.errorf("%s: no timestamps", name)
		}
		for _, f := range frames {
			stamp := f.Timestamp.Format("2006-01-02 15:04:05")
			variables := make([]string, 0, len(f.Rasters))
			for v := range f.Rasters {
				variables = append(variables, v)
			}
			sort.Strings(variables)

			for _, v := range variables {
				info := f.Rasters[v]
				where := fmt.Sprintf("%s %s %s", name, stamp, v)
				if info.Raster == "" {
					p.errorf("%s: raster path is empty", where)
					continue
				}
				addURL(cat.Resolve(info.Raster))
				if !info.HasColorbar() {
					if len(info.Levels) > 0 {
						p.errorf("%s: levels given without a colorbar", where)
					}
					continue
				}
				if !monotonic(info.Levels) {
					p.errorf("%s: levels %v are not strictly monotonic", where, []float64(info.Levels))
				}
				legend := cat.Resolve(info.Colorbar)
				addURL(legend)
				key := fmt.Sprintf("%s|%v", legend, []float64(info.Levels))
				if !seenLegend[key] {
					seenLegend[key] = true
					legends = append(legends, legendRef{url: legend, levels: info.Levels})
				}
			}
		}
	}
	return p, urls, legends
}

// validateImages loads every URL with bounded concurrency.
func validateImages(ctx context.Context, client *fetch.Client, urls []string, workers int) (*phase, map[string]domain.Image) {
	p := &phase{name: "Image availability"}
	images := make(map[string]domain.Image, len(urls))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, u := range urls {
		g.Go(func() error {
			img, err := client.Fetch(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[u] = err
				return nil
			}
			images[u] = img
			return nil
		})
	}
	_ = g.Wait()

	for _, u := range urls {
		if err, ok := failures[u]; ok {
			p.errorf("%v", err)
		}
	}
	return p, images
}

// validateLegends calibrates every loaded legend.
func validateLegends(legends []legendRef, images map[string]domain.Image) (*phase, map[colorbar.Mode]int) {
	p := &phase{name: "Legend calibration"}
	modes := make(map[colorbar.Mode]int)
	opts := colorbar.DefaultOptions()

	for _, ref := range legends {
		img, ok := images[ref.url]
		if !ok {
			continue
		}
		table, err := colorbar.Scan(img)
		if err != nil {
			modes[colorbar.ModeEmpty]++
			p.errorf("%s: %v", ref.url, err)
			continue
		}
		mode := colorbar.Interpolate(img, table, ref.levels, opts)
		modes[mode]++
		if len(ref.levels) > 0 && mode == colorbar.ModePassthrough {
			p.errorf("%s: levels %v given but no tick marks found", ref.url, []float64(ref.levels))
		}
	}
	return p, modes
}

// monotonic reports whether levels strictly ascend or strictly descend.
func monotonic(levels domain.LevelTable) bool {
	if len(levels) < 2 {
		return true
	}
	ascending := levels[1] > levels[0]
	for i := 1; i < len(levels); i++ {
		if ascending && levels[i] <= levels[i-1] {
			return false
		}
		if !ascending && levels[i] >= levels[i-1] {
			return false
		}
	}
	return true
}
