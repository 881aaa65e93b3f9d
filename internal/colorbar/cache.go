package colorbar

import (
	"sync"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

// LegendCalibrator is implemented by Calibrator and CachedCalibrator.
type LegendCalibrator interface {
	Calibrate(key string, legend domain.Image, levels domain.LevelTable) (*domain.CalibrationTable, error)
}

// CachedCalibrator wraps a LegendCalibrator with an in-memory LRU keyed by
// legend identity. Legends are stable across timestamps, so a series over one
// variable calibrates once.
type CachedCalibrator struct {
	inner   LegendCalibrator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedCalibrator creates a cache decorator around a calibrator.
func NewCachedCalibrator(inner LegendCalibrator, maxEntries int, metrics *observability.Metrics) *CachedCalibrator {
	return &CachedCalibrator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Calibrate returns the cached table for key or calibrates and stores it.
// Failures are not cached. Returned tables are shared and must not be mutated.
func (c *CachedCalibrator) Calibrate(key string, legend domain.Image, levels domain.LevelTable) (*domain.CalibrationTable, error) {
	if table, ok := c.cache.get(key); ok {
		c.metrics.CalibrationCache.WithLabelValues("hit").Inc()
		return table, nil
	}
	c.metrics.CalibrationCache.WithLabelValues("miss").Inc()
	table, err := c.inner.Calibrate(key, legend, levels)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, table)
	return table, nil
}

// Purge drops every cached table.
func (c *CachedCalibrator) Purge() {
	c.cache.purge()
}

// lruCache is a simple thread-safe LRU cache for calibration tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.CalibrationTable
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.CalibrationTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.CalibrationTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
