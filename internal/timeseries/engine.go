// Package timeseries builds per-point value series from rendered raster and
// legend images across a time range.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/colorbar-timeseries/internal/catalog"
	"github.com/couchcryptid/colorbar-timeseries/internal/colorbar"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/imagestore"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

// Catalog lists the rasters available for each domain.
type Catalog interface {
	Domains() []string
	HasDomain(name string) bool
	Frames(name string) ([]catalog.Frame, error)
	Timestamps(name string, start, end time.Time) ([]time.Time, error)
	Lookup(name string, ts time.Time, variable string) (catalog.RasterInfo, bool)
	Resolve(path string) string
}

// Calibrator turns a legend image into a decoded calibration table.
type Calibrator interface {
	Calibrate(key string, legend domain.Image, levels domain.LevelTable) (*domain.CalibrationTable, error)
}

// purger is implemented by calibrators that keep tables between calls.
type purger interface {
	Purge()
}

// ProgressFunc receives the completed fraction after every timestamp.
type ProgressFunc func(progress float64)

// Options tunes sampling.
type Options struct {
	// MaxImageHeight caps the sampled resolution of tall rasters; 0 disables it.
	MaxImageHeight int
}

// Engine owns the image cache and prefetch scheduler for the active domain
// and turns image/legend pairs into time series.
type Engine struct {
	catalog    Catalog
	cache      *imagestore.Cache
	scheduler  *imagestore.Scheduler
	calibrator Calibrator
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options
	ready      atomic.Bool
}

// New creates an Engine. No domain is active until SwitchDomain is called.
func New(cat Catalog, cache *imagestore.Cache, scheduler *imagestore.Scheduler, calibrator Calibrator, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	return &Engine{
		catalog:    cat,
		cache:      cache,
		scheduler:  scheduler,
		calibrator: calibrator,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// CheckReadiness returns nil once a domain is active.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return domain.ErrNoActiveDomain
	}
	return nil
}

// Domain returns the active domain.
func (e *Engine) Domain() string {
	return e.cache.Domain()
}

// Domains lists every domain the catalog knows.
func (e *Engine) Domains() []string {
	return e.catalog.Domains()
}

// SwitchDomain makes name the active domain. Every cached image and
// calibration of the previous domain is released and all outstanding work for
// it, including running generations, is cancelled.
func (e *Engine) SwitchDomain(name string) error {
	if !e.catalog.HasDomain(name) {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownDomain, name)
	}
	e.scheduler.Stop()
	e.cache.Reset(name)
	// Domains may reuse legend paths for different images.
	if p, ok := e.calibrator.(purger); ok {
		p.Purge()
	}
	e.metrics.DomainSwitches.Inc()
	e.ready.Store(true)
	e.logger.Info("domain switched", "domain", name)
	return nil
}

// Prefetch loads the variable's images for the whole active domain in the
// background, images inside window first.
func (e *Engine) Prefetch(variable string, window imagestore.Window) error {
	name := e.cache.Domain()
	if name == "" {
		return domain.ErrNoActiveDomain
	}
	frames, err := e.catalog.Frames(name)
	if err != nil {
		return err
	}

	items := make([]imagestore.PrefetchItem, 0, 2*len(frames))
	for _, f := range frames {
		info, ok := f.Rasters[variable]
		if !ok || !info.HasColorbar() {
			continue
		}
		items = append(items,
			imagestore.PrefetchItem{URL: e.catalog.Resolve(info.Raster), Timestamp: f.Timestamp},
			imagestore.PrefetchItem{URL: e.catalog.Resolve(info.Colorbar), Timestamp: f.Timestamp},
		)
	}
	e.scheduler.Prefetch(items, window)
	return nil
}

// Generate decodes req.Variable at every point for each timestamp of the
// active domain within [req.Start, req.End].
//
// Timestamps are processed one at a time in ascending order; the image and
// legend of one timestamp load concurrently. A timestamp whose images fail to
// load yields missing samples, and a legend without a colored band yields
// zeros. Generation stops with domain.ErrCancelled when the domain changes,
// checked between timestamps, and returns no partial result.
func (e *Engine) Generate(ctx context.Context, req domain.TimeSeriesRequest, progress ProgressFunc) (*domain.TimeSeriesResult, error) {
	if progress == nil {
		progress = func(float64) {}
	}
	started := domain.Now()

	result, err := e.generate(ctx, req, progress)
	e.metrics.GenerationDuration.Observe(domain.Since(started).Seconds())
	switch {
	case err == nil:
		e.metrics.Generations.WithLabelValues("complete").Inc()
	case errors.Is(err, domain.ErrCancelled):
		e.metrics.Generations.WithLabelValues("cancelled").Inc()
		e.logger.Info("time series cancelled", "variable", req.Variable)
	default:
		e.metrics.Generations.WithLabelValues("failed").Inc()
	}
	return result, err
}

func (e *Engine) generate(ctx context.Context, req domain.TimeSeriesRequest, progress ProgressFunc) (*domain.TimeSeriesResult, error) {
	// Pinned once: a domain switch cancels the session.
	session := e.cache.Session()
	name := session.Domain()
	if name == "" {
		return nil, domain.ErrNoActiveDomain
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	stamps, err := e.catalog.Timestamps(name, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	// Reprioritise background loading to the selected timestamps so the loop
	// below mostly joins loads that are already in flight.
	window := imagestore.Window{Start: req.Start, End: req.End}
	if len(stamps) > 0 {
		window = imagestore.Window{Start: stamps[0], End: stamps[len(stamps)-1]}
	}
	if err := e.Prefetch(req.Variable, window); err != nil {
		return nil, err
	}

	result := &domain.TimeSeriesResult{
		Domain:     name,
		Variable:   req.Variable,
		Timestamps: make([]time.Time, 0, len(stamps)),
		Series:     make([]domain.PointSeries, len(req.Points)),
	}
	for i, p := range req.Points {
		result.Series[i] = domain.PointSeries{Point: p, Values: make([]*float64, 0, len(stamps))}
	}

	e.logger.Info("time series started", "domain", name, "variable", req.Variable,
		"timestamps", len(stamps), "points", len(req.Points))
	progress(0)

	for i, ts := range stamps {
		if session.Context().Err() != nil {
			return nil, domain.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := e.sampleTimestamp(ctx, session, ts, req)
		if err != nil {
			if session.Context().Err() != nil {
				return nil, domain.ErrCancelled
			}
			return nil, err
		}

		result.Timestamps = append(result.Timestamps, ts)
		for j := range result.Series {
			result.Series[j].Values = append(result.Series[j].Values, values[j])
		}
		progress(float64(i+1) / float64(len(stamps)))
	}
	if len(stamps) == 0 {
		progress(1)
	}

	result.GeneratedAt = domain.Now()
	e.logger.Info("time series complete", "domain", name, "variable", req.Variable,
		"timestamps", len(result.Timestamps), "missing", result.Missing())
	return result, nil
}

// sampleTimestamp returns one value per point. Only cancellation is an error;
// everything else degrades to missing or zero samples.
func (e *Engine) sampleTimestamp(ctx context.Context, session *imagestore.Session, ts time.Time, req domain.TimeSeriesRequest) ([]*float64, error) {
	values := make([]*float64, len(req.Points))

	f, err := e.loadFrame(ctx, session, ts, req.Variable)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCancelled) || ctx.Err() != nil:
		return nil, err
	case errors.Is(err, domain.ErrEmptyLegend):
		e.logger.Warn("legend has no colored band, using zeros",
			"timestamp", ts, "variable", req.Variable, "error", err)
		for i := range values {
			values[i] = ptr(0)
		}
		return values, nil
	default:
		e.logger.Warn("timestamp skipped",
			"timestamp", ts, "variable", req.Variable, "error", err)
		e.metrics.MissingSamples.Add(float64(len(values)))
		return values, nil
	}

	for i, p := range req.Points {
		_, v := f.sample(p)
		values[i] = ptr(v)
	}
	return values, nil
}

// ValueAt decodes a single point at a single timestamp of the active domain.
func (e *Engine) ValueAt(ctx context.Context, variable string, ts time.Time, point domain.SamplePoint) (domain.PointValue, error) {
	if !point.Valid() {
		return domain.PointValue{}, fmt.Errorf("%w: point (%g,%g) outside the unit square", domain.ErrInvalidRequest, point.X, point.Y)
	}
	session := e.cache.Session()
	if session.Domain() == "" {
		return domain.PointValue{}, domain.ErrNoActiveDomain
	}
	f, err := e.loadFrame(ctx, session, ts, variable)
	if err != nil {
		return domain.PointValue{}, err
	}
	c, v := f.sample(point)
	return domain.PointValue{Timestamp: ts, Point: point, Color: c, Value: v}, nil
}

// frame is a loaded data image and its decoded legend.
type frame struct {
	image domain.Image
	table *domain.CalibrationTable
}

// sample recomputes pixel offsets from the image's own size every time, since
// resolution may differ between timestamps.
func (f *frame) sample(p domain.SamplePoint) (domain.RGB, float64) {
	x, y := p.PixelAt(f.image.Width(), f.image.Height())
	c := f.image.Pixel(x, y).RGB()
	return c, colorbar.Decode(f.table, c)
}

// loadFrame waits for both the data image and the legend, then calibrates.
func (e *Engine) loadFrame(ctx context.Context, session *imagestore.Session, ts time.Time, variable string) (*frame, error) {
	info, ok := e.catalog.Lookup(session.Domain(), ts, variable)
	if !ok {
		return nil, fmt.Errorf("no %s raster at %s", variable, ts.Format(time.RFC3339))
	}
	if !info.HasColorbar() {
		return nil, fmt.Errorf("%s has no colorbar at %s", variable, ts.Format(time.RFC3339))
	}
	rasterURL := e.catalog.Resolve(info.Raster)
	legendURL := e.catalog.Resolve(info.Colorbar)

	var img, legend domain.Image
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		img, err = session.Require(gctx, rasterURL)
		return err
	})
	g.Go(func() error {
		var err error
		legend, err = session.Require(gctx, legendURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table, err := e.calibrator.Calibrate(calibrationKey(legendURL, info.Levels), legend, info.Levels)
	if err != nil {
		return nil, err
	}
	return &frame{image: e.sampleView(img), table: table}, nil
}

func (e *Engine) sampleView(img domain.Image) domain.Image {
	limit := e.opts.MaxImageHeight
	if limit <= 0 || img.Height() <= limit {
		return img
	}
	width := img.Width() * limit / img.Height()
	if width < 1 {
		width = 1
	}
	return domain.Scaled(img, width, limit)
}

func calibrationKey(legendURL string, levels domain.LevelTable) string {
	return fmt.Sprintf("%s|%v", legendURL, []float64(levels))
}

func validate(req domain.TimeSeriesRequest) error {
	if req.Variable == "" {
		return fmt.Errorf("%w: variable is required", domain.ErrInvalidRequest)
	}
	if len(req.Points) == 0 {
		return fmt.Errorf("%w: at least one sample point is required", domain.ErrInvalidRequest)
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		return fmt.Errorf("%w: end precedes start", domain.ErrInvalidRequest)
	}
	for i, p := range req.Points {
		if !p.Valid() {
			return fmt.Errorf("%w: point %d (%g,%g) outside the unit square", domain.ErrInvalidRequest, i, p.X, p.Y)
		}
	}
	return nil
}

func ptr(v float64) *float64 {
	return &v
}
