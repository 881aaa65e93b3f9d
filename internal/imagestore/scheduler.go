package imagestore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
)

// PrefetchItem is one URL to load and the timestamp it belongs to.
type PrefetchItem struct {
	URL       string
	Timestamp time.Time
}

// Window is the inclusive timestamp range currently on screen.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Scheduler loads images into a Cache in the background. Only one prefetch
// generation runs at a time: a new Prefetch stops the previous supervisor
// from dispatching further URLs, and a domain reset on the cache terminates
// it as well. At most workers loads started by the scheduler are in flight
// at once.
type Scheduler struct {
	cache   *Cache
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler with the given number of concurrent loaders.
func NewScheduler(cache *Cache, workers int, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	closed := make(chan struct{})
	close(closed)
	return &Scheduler{
		cache:   cache,
		workers: workers,
		logger:  logger,
		metrics: metrics,
		cancel:  func() {},
		done:    closed,
	}
}

// Prefetch schedules every not-yet-cached item without blocking. Items whose
// timestamp is inside window are loaded first, then the rest, each group
// submitted in temporal order. No out-of-window fetch is issued before every
// in-window load has finished.
func (s *Scheduler) Prefetch(items []PrefetchItem, window Window) {
	session := s.cache.Session()
	in, out := s.order(session, items, window)

	s.mu.Lock()
	s.cancel()
	ctx, cancel := context.WithCancel(session.Context())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.logger.Debug("prefetch scheduled", "domain", session.Domain(),
		"in_window", len(in), "out_of_window", len(out),
		"window_start", window.Start, "window_end", window.End)
	go s.supervise(ctx, session, [][]string{in, out}, done)
}

// Stop cancels the running prefetch generation, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

// Wait blocks until the current prefetch generation has finished or been
// cancelled and its workers have returned.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
}

// order drops cached and duplicate URLs and splits the rest into in-window
// and out-of-window groups, each in temporal order. A URL listed at several
// timestamps is in-window when any of them is.
func (s *Scheduler) order(session *Session, items []PrefetchItem, window Window) (in, out []string) {
	inWindow := make(map[string]bool)
	for _, it := range items {
		if window.Contains(it.Timestamp) {
			inWindow[it.URL] = true
		}
	}

	sorted := make([]PrefetchItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	seen := make(map[string]bool, len(sorted))
	for _, it := range sorted {
		if seen[it.URL] || session.Contains(it.URL) {
			continue
		}
		seen[it.URL] = true
		if inWindow[it.URL] {
			in = append(in, it.URL)
		} else {
			out = append(out, it.URL)
		}
	}
	s.metrics.PrefetchQueued.WithLabelValues("in").Add(float64(len(in)))
	s.metrics.PrefetchQueued.WithLabelValues("out").Add(float64(len(out)))
	return in, out
}

// supervise starts the loads of each group in order, keeping at most
// s.workers in flight, and waits for a group to finish before starting the
// next one.
func (s *Scheduler) supervise(ctx context.Context, session *Session, groups [][]string, done chan struct{}) {
	defer close(done)

	slots := make(chan struct{}, s.workers)
	issued, total := 0, 0
	for _, group := range groups {
		total += len(group)
	}

	for _, group := range groups {
		pending := make([]*pendingLoad, 0, len(group))
		for _, url := range group {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				s.superseded(issued, total)
				return
			}
			if ctx.Err() != nil {
				<-slots
				s.superseded(issued, total)
				return
			}
			p, err := session.begin(url)
			if err != nil {
				<-slots
				s.superseded(issued, total)
				return
			}
			issued++
			pending = append(pending, p)
			go func() {
				<-p.done
				<-slots
			}()
		}

		for _, p := range pending {
			select {
			case <-p.done:
			case <-ctx.Done():
				s.superseded(issued, total)
				return
			}
		}
	}
	s.logger.Debug("prefetch complete", "loaded", issued)
}

func (s *Scheduler) superseded(issued, total int) {
	s.logger.Debug("prefetch superseded", "dispatched", issued, "queued", total)
}
