// Package imagestore holds decoded images for the active domain and loads
// them in the background in priority order.
package imagestore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

// Fetcher loads and decodes one image. It is the boundary to the network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.Image, error)
}

// Cache maps image URLs to decoded images for one domain at a time. It is
// append-only while a domain is active: entries are never evicted one by one.
// Reset swaps in an empty generation in a single step and cancels every load
// still running for the previous one.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics

	mu  sync.Mutex
	gen *generation
}

// generation is the cache state for one active domain.
type generation struct {
	domain  string
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*pendingLoad
}

// pendingLoad is an in-flight or completed fetch. done is closed once img or
// err is set.
type pendingLoad struct {
	done chan struct{}
	img  domain.Image
	err  error
}

// NewCache creates a Cache with no active domain.
func NewCache(fetcher Fetcher, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		metrics: metrics,
		gen:     newGeneration(""),
	}
}

func newGeneration(name string) *generation {
	ctx, cancel := context.WithCancel(context.Background())
	return &generation{
		domain:  name,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*pendingLoad),
	}
}

// Reset releases every entry, terminates outstanding loads and makes name the
// active domain.
func (c *Cache) Reset(name string) {
	c.mu.Lock()
	old := c.gen
	c.gen = newGeneration(name)
	c.mu.Unlock()

	old.cancel()
	c.metrics.CacheEntries.Set(0)
	c.logger.Info("image cache reset", "previous_domain", old.domain, "domain", name, "released", len(old.entries))
}

// Domain returns the active domain.
func (c *Cache) Domain() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen.domain
}

// Len returns the number of successfully loaded images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.gen.entries {
		if p.loaded() {
			n++
		}
	}
	return n
}

// Contains reports whether url is loaded or being loaded.
func (c *Cache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.gen.entries[url]
	return ok
}

// Require returns the image for url in the active domain. See Session.Require.
func (c *Cache) Require(ctx context.Context, url string) (domain.Image, error) {
	return c.Session().Require(ctx, url)
}

// Session pins the domain that is active when it is created. Work that must
// not spill into a later domain's cache goes through a Session.
type Session struct {
	cache *Cache
	gen   *generation
}

// Session returns a handle on the active domain.
func (c *Cache) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Session{cache: c, gen: c.gen}
}

// Domain returns the pinned domain.
func (s *Session) Domain() string { return s.gen.domain }

// Context is cancelled once the pinned domain is no longer active.
func (s *Session) Context() context.Context { return s.gen.ctx }

// Contains reports whether url is loaded or being loaded in the pinned domain.
func (s *Session) Contains(url string) bool {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	_, ok := s.gen.entries[url]
	return ok
}

// Require returns the image for url, starting a load when none is in flight
// and waiting for it otherwise. It returns domain.ErrCancelled when the
// pinned domain is, or becomes, inactive before the image arrives.
func (s *Session) Require(ctx context.Context, url string) (domain.Image, error) {
	p, err := s.begin(url)
	if err != nil {
		return nil, err
	}
	if p.loaded() {
		return p.img, nil
	}

	select {
	case <-p.done:
	case <-s.gen.ctx.Done():
		return nil, domain.ErrCancelled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.img, nil
}

// begin returns the load for url, starting one when nothing is loaded or in
// flight. It never waits for the image.
func (s *Session) begin(url string) (*pendingLoad, error) {
	c, g := s.cache, s.gen
	if g.ctx.Err() != nil {
		return nil, domain.ErrCancelled
	}

	c.mu.Lock()
	p, ok := g.entries[url]
	if !ok {
		p = &pendingLoad{done: make(chan struct{})}
		g.entries[url] = p
	}
	c.mu.Unlock()

	switch {
	case !ok:
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		go c.load(g, url, p)
	case p.loaded():
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	default:
		c.metrics.CacheLookups.WithLabelValues("pending").Inc()
	}
	return p, nil
}

// load runs under the generation's context so that one caller giving up does
// not abort a fetch other callers are waiting on.
func (c *Cache) load(g *generation, url string, p *pendingLoad) {
	start := time.Now()
	img, err := c.fetcher.Fetch(g.ctx, url)
	c.metrics.ImageFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if g.ctx.Err() != nil {
			err = domain.ErrCancelled
		} else {
			var loadErr *domain.ImageLoadError
			if !errors.As(err, &loadErr) {
				err = &domain.ImageLoadError{URL: url, Err: err}
			}
			c.logger.Warn("image load failed", "url", url, "error", err)
		}
		c.metrics.ImageFetches.WithLabelValues("error").Inc()

		// Failures are not retained so a later Require can retry.
		c.mu.Lock()
		if g.entries[url] == p {
			delete(g.entries, url)
		}
		c.mu.Unlock()
	} else {
		c.metrics.ImageFetches.WithLabelValues("success").Inc()
	}

	p.img, p.err = img, err
	close(p.done)

	if err == nil {
		c.mu.Lock()
		if c.gen == g {
			c.metrics.CacheEntries.Inc()
		}
		c.mu.Unlock()
	}
}

func (p *pendingLoad) loaded() bool {
	select {
	case <-p.done:
		return p.err == nil
	default:
		return false
	}
}
