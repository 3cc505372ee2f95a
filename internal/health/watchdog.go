package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shotpool/shotpool/internal/browserpool"
)

// Pool is the subset of *browserpool.Pool the watchdog needs, kept narrow
// per the teacher's dependency-inversion style so tests can fake it.
type Pool interface {
	Stats() browserpool.Stats
	ForceRecycle(ctx context.Context, n int)
	RecycleOlderThan(ctx context.Context, maxAge time.Duration)
}

// WatchdogConfig tunes the stuck-pool detector.
type WatchdogConfig struct {
	ScanInterval    time.Duration
	UsageThreshold  float64
	IdleThreshold   time.Duration
	ForceRecycleAge time.Duration
}

func (c WatchdogConfig) withDefaults() WatchdogConfig {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 30 * time.Second
	}
	if c.UsageThreshold <= 0 {
		c.UsageThreshold = 0.8
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 2 * time.Minute
	}
	return c
}

// Watchdog detects a pool stuck at high utilization despite no incoming
// traffic, and forces recovery.
type Watchdog struct {
	cfg  WatchdogConfig
	pool Pool

	lastRequest atomic.Int64 // unix nanos

	mu         sync.Mutex
	recoveries int

	now func() time.Time
}

// NewWatchdog creates a Watchdog over pool.
func NewWatchdog(cfg WatchdogConfig, pool Pool) *Watchdog {
	w := &Watchdog{cfg: cfg.withDefaults(), pool: pool, now: time.Now}
	w.Touch()
	return w
}

// Touch records that a request was just admitted — called by the pipeline
// on every admission (spec §4.10's "no requests since" tracking, made
// explicit per the original implementation).
func (w *Watchdog) Touch() {
	w.lastRequest.Store(w.now().UnixNano())
}

func (w *Watchdog) idleSince() time.Duration {
	last := time.Unix(0, w.lastRequest.Load())
	return w.now().Sub(last)
}

// Scan runs one watchdog pass: recycles aged slots unconditionally, and —
// if utilization is high with no recent traffic — forces recovery of half
// the in-use slots.
func (w *Watchdog) Scan(ctx context.Context) {
	if w.cfg.ForceRecycleAge > 0 {
		w.pool.RecycleOlderThan(ctx, w.cfg.ForceRecycleAge)
	}

	stats := w.pool.Stats()
	if stats.Utilization > w.cfg.UsageThreshold && w.idleSince() > w.cfg.IdleThreshold {
		n := stats.InUse / 2
		if n < 1 {
			n = 1
		}
		w.pool.ForceRecycle(ctx, n)
		w.mu.Lock()
		w.recoveries++
		w.mu.Unlock()
	}
}

// Recoveries reports how many times Scan has triggered a forced recovery.
func (w *Watchdog) Recoveries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recoveries
}

// Run loops Scan every ScanInterval until stop is closed.
func (w *Watchdog) Run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}
