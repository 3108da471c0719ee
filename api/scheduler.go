/*
scheduler.go - Periodic maintenance of the favorites cache

PURPOSE:
  The favorite-description cache is bumped on every insert but never
  decremented on edit or delete, so it drifts. This scheduler periodically
  rebuilds it from the movement history.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Rebuilds once immediately on Start, then on every tick
  - Failures are logged and retried on the next tick; the cache is advisory

CONFIGURATION:
  - Interval: How often to rebuild (default: 24 hours)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewFavoritesScheduler(handler.Service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RebuildFavorites endpoint (manual rebuild)
  - ledger/service.go: Service.RebuildFavorites
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FavoritesRebuilder is the part of the ledger service the scheduler drives.
type FavoritesRebuilder interface {
	RebuildFavorites(ctx context.Context) (int, error)
}

// FavoritesScheduler periodically rebuilds the favorites cache.
type FavoritesScheduler struct {
	Rebuilder FavoritesRebuilder
	Logger    *zap.Logger
	Interval  time.Duration
	Enabled   bool
	Timeout   time.Duration

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewFavoritesScheduler creates a new scheduler.
func NewFavoritesScheduler(rebuilder FavoritesRebuilder, logger *zap.Logger) *FavoritesScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoritesScheduler{
		Rebuilder: rebuilder,
		Logger:    logger,
		Interval:  24 * time.Hour,
		Enabled:   true,
		Timeout:   time.Minute,
	}
}

// Start begins the scheduler.
func (fs *FavoritesScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		fs.Logger.Info("favorites scheduler disabled, not starting")
		return
	}
	if fs.ticker != nil {
		return
	}

	fs.ticker = time.NewTicker(fs.Interval)
	fs.stop = make(chan struct{})
	fs.wg.Add(1)

	go fs.run(fs.ticker, fs.stop)

	fs.Logger.Info("favorites scheduler started", zap.Duration("interval", fs.Interval))
}

// Stop stops the scheduler and waits for a running rebuild to finish.
func (fs *FavoritesScheduler) Stop() {
	fs.mu.Lock()
	if fs.ticker == nil {
		fs.mu.Unlock()
		return
	}
	fs.ticker.Stop()
	close(fs.stop)
	fs.ticker = nil
	fs.mu.Unlock()

	fs.wg.Wait()
	fs.Logger.Info("favorites scheduler stopped")
}

func (fs *FavoritesScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer fs.wg.Done()

	// Run immediately on start
	fs.rebuild()

	for {
		select {
		case <-ticker.C:
			fs.rebuild()
		case <-stop:
			return
		}
	}
}

func (fs *FavoritesScheduler) rebuild() {
	ctx, cancel := context.WithTimeout(context.Background(), fs.Timeout)
	defer cancel()

	n, err := fs.Rebuilder.RebuildFavorites(ctx)

	fs.mu.Lock()
	fs.lastRun = time.Now()
	fs.lastErr = err
	fs.mu.Unlock()

	if err != nil {
		fs.Logger.Error("favorites rebuild failed", zap.Error(err))
		return
	}
	fs.Logger.Debug("favorites rebuilt by scheduler", zap.Int("count", n))
}

// RunNow triggers an immediate rebuild (for testing/admin).
func (fs *FavoritesScheduler) RunNow() error {
	fs.rebuild()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastErr
}

// LastRun returns when the last rebuild finished and its error.
func (fs *FavoritesScheduler) LastRun() (time.Time, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastRun, fs.lastErr
}
