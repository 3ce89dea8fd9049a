package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"assetsearch/internal/metrics"
	"assetsearch/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoFetcher is returned by Preload when the cache was built without a Fetcher.
var ErrNoFetcher = errors.New("catalog: no fetcher configured")

const fetchKey = "catalog"

// Fetcher loads the full asset catalog from the backend.
type Fetcher interface {
	GetAssets(ctx context.Context, limit int) ([]AssetRecord, error)
}

// Options tune an AssetCache. Zero values pick the defaults noted per field.
type Options struct {
	Limit        int           // request bound for the catalog fetch (default 5000)
	TTL          time.Duration // snapshot expiry; 0 never expires
	FetchTimeout time.Duration // per fetch, independent of callers (default 15s)
	Now          func() time.Time
}

// AssetCache holds the process-wide catalog snapshot shared by every search
// controller. Build one with New and pass it to the controllers that need it.
type AssetCache struct {
	fetcher Fetcher
	opts    Options
	logger  *zap.Logger

	snap    atomic.Pointer[Snapshot]
	loading atomic.Bool
	group   singleflight.Group

	listeners listenerSet
}

func New(fetcher Fetcher, opts Options, log *zap.Logger) *AssetCache {
	if opts.Limit <= 0 {
		opts.Limit = 5000
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &AssetCache{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.OrNop(log).Named("catalog"),
	}
	c.listeners.logger = c.logger
	return c
}

// Preload fetches the catalog unless a fresh snapshot is already held.
// Concurrent calls share one in-flight request. On failure the previous
// snapshot stays in place and the fetch error is returned to every caller
// attached to that request; there is no retry.
func (c *AssetCache) Preload(ctx context.Context) error {
	if c.fresh() {
		return nil
	}
	return c.fetch(ctx, false)
}

// Refresh re-fetches the catalog regardless of freshness. A call made while
// another fetch is in flight attaches to that fetch instead.
func (c *AssetCache) Refresh(ctx context.Context) error {
	return c.fetch(ctx, true)
}

func (c *AssetCache) fetch(ctx context.Context, force bool) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}

	ch := c.group.DoChan(fetchKey, func() (any, error) {
		// A flight that just finished may have published between the
		// caller's freshness check and this one starting.
		if !force && c.fresh() {
			return nil, nil
		}
		return nil, c.load()
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CatalogCoalescedTotal.Inc()
		}
		return res.Err
	case <-ctx.Done():
		// The fetch keeps running for other callers and still publishes.
		return ctx.Err()
	}
}

// load performs one catalog fetch. It only runs inside the singleflight group.
func (c *AssetCache) load() error {
	c.loading.Store(true)
	c.listeners.notify(LoadingEvent{Loading: true, Size: c.Snapshot().Len()})

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	defer cancel()

	start := c.opts.Now()
	assets, err := c.fetcher.GetAssets(ctx, c.opts.Limit)
	metrics.CatalogFetchTotal.WithLabelValues(metrics.Result(err)).Inc()

	if err != nil {
		c.loading.Store(false)
		size := c.Snapshot().Len()
		c.logger.Warn("catalog fetch failed, keeping previous snapshot",
			zap.Int("size", size), zap.Error(err))
		c.listeners.notify(LoadingEvent{Loading: false, Size: size, Err: err})
		return fmt.Errorf("preload catalog: %w", err)
	}

	snap := NewSnapshot(assets, c.opts.Now())
	c.snap.Store(snap)
	c.loading.Store(false)

	metrics.CatalogSize.Set(float64(snap.Len()))
	metrics.CatalogLastFetch.Set(float64(snap.FetchedAt.Unix()))
	c.logger.Info("catalog loaded",
		zap.Int("count", snap.Len()),
		zap.Int("malformed", snap.Malformed()),
		zap.Duration("elapsed", snap.FetchedAt.Sub(start)))

	c.listeners.notify(LoadingEvent{Loading: false, Size: snap.Len()})
	return nil
}

func (c *AssetCache) fresh() bool {
	snap := c.snap.Load()
	return snap != nil && c.freshAt(snap, c.opts.Now())
}

func (c *AssetCache) freshAt(snap *Snapshot, now time.Time) bool {
	return c.opts.TTL <= 0 || now.Sub(snap.FetchedAt) < c.opts.TTL
}

// Snapshot returns the current snapshot, or nil before the first successful
// fetch. Callers must treat it as read-only.
func (c *AssetCache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// FilterAssets ranks the current snapshot against query; see Filter.
func (c *AssetCache) FilterAssets(query string, limit int) []AssetRecord {
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}
	start := time.Now()
	defer metrics.ObserveSince(metrics.FilterDuration, start)
	return Filter(snap.Assets, query, limit)
}

// Browse returns up to limit valid records sorted by symbol.
func (c *AssetCache) Browse(limit int) []AssetRecord {
	snap := c.snap.Load()
	if snap == nil || limit <= 0 {
		return nil
	}
	sorted := snap.sorted()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]AssetRecord, len(sorted))
	copy(out, sorted)
	return out
}

// Subscribe registers l for loading transitions. The returned function
// unregisters it and is safe to call more than once.
func (c *AssetCache) Subscribe(l Listener) (unsubscribe func()) {
	return c.listeners.add(l)
}

// ClearCache drops the snapshot so the next Preload fetches again.
func (c *AssetCache) ClearCache() {
	c.snap.Store(nil)
	metrics.CatalogSize.Set(0)
	c.logger.Debug("catalog cleared")
}

func (c *AssetCache) Stats() Stats {
	snap := c.snap.Load()
	st := Stats{Loading: c.loading.Load(), Stale: true}
	if snap != nil {
		now := c.opts.Now()
		st.Size = snap.Len()
		st.Malformed = snap.Malformed()
		st.FetchedAt = snap.FetchedAt
		st.Age = now.Sub(snap.FetchedAt)
		st.Stale = !c.freshAt(snap, now)
	}
	return st
}

// Listener receives loading transitions.
type Listener func(LoadingEvent)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// listenerSet is a copy-on-write list; notify iterates a stable copy and
// skips subscriptions deactivated mid-notification.
type listenerSet struct {
	mu     sync.Mutex
	subs   []*subscription
	logger *zap.Logger
}

func (s *listenerSet) add(fn Listener) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs[:len(s.subs):len(s.subs)], sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			defer s.mu.Unlock()
			next := make([]*subscription, 0, len(s.subs))
			for _, x := range s.subs {
				if x != sub {
					next = append(next, x)
				}
			}
			s.subs = next
		})
	}
}

func (s *listenerSet) notify(ev LoadingEvent) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			s.call(sub.fn, ev)
		}
	}
}

// call runs one listener. A panicking listener must not leave the cache
// stuck in the loading state or starve the listeners after it.
func (s *listenerSet) call(fn Listener, ev LoadingEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.OrNop(s.logger).Error("catalog listener panicked",
				zap.Bool("loading", ev.Loading), zap.Any("panic", r))
		}
	}()
	fn(ev)
}
