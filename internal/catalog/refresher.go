package catalog

import (
	"context"
	"sync"
	"time"

	"assetsearch/logger"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is used when a Refresher is given no positive interval.
const DefaultRefreshInterval = 15 * time.Minute

// Refresher re-fetches the catalog on a fixed interval so long-lived
// sessions pick up listings without a manual refresh.
type Refresher struct {
	Cache    *AssetCache
	Interval time.Duration
	Logger   *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewRefresher(cache *AssetCache, interval time.Duration, log *zap.Logger) *Refresher {
	log = logger.OrNop(log).Named("catalog.refresher")
	if interval <= 0 {
		log.Warn("non-positive refresh interval, using default",
			zap.Duration("interval", interval), zap.Duration("default", DefaultRefreshInterval))
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		Cache:    cache,
		Interval: interval,
		Logger:   log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the refresh loop in the background until ctx is cancelled or
// Stop is called. The first refresh happens one interval after Start.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		interval := r.Interval
		if interval <= 0 {
			interval = DefaultRefreshInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.Logger.Info("catalog refresher started", zap.Duration("interval", interval))
		for {
			select {
			case <-ticker.C:
				r.runOnce(ctx)
			case <-r.stopCh:
				r.Logger.Info("catalog refresher stopped")
				return
			case <-ctx.Done():
				r.Logger.Info("catalog refresher stopped", zap.Error(ctx.Err()))
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit. Only call it after Start.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.done
}

func (r *Refresher) runOnce(ctx context.Context) {
	if err := r.Cache.Refresh(ctx); err != nil {
		r.Logger.Warn("scheduled catalog refresh failed", zap.Error(err))
		return
	}
	st := r.Cache.Stats()
	r.Logger.Debug("scheduled catalog refresh", zap.Int("size", st.Size))
}
