// Package browserpool implements the browser slot pool (spec §4.6): the
// hardest component in the service, responsible for growing, recycling and
// fairly queuing access to a bounded set of browser processes.
package browserpool

import (
	"context"
	"fmt"
	"math"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shotpool/shotpool/internal/apierrors"
	"github.com/shotpool/shotpool/internal/browser"
)

// Config tunes the pool's sizing and recycling behavior.
type Config struct {
	MinSize         int
	MaxSize         int
	IdleTimeout     time.Duration
	MaxAge          time.Duration
	CleanupInterval time.Duration
	Engine          string
	Headless        bool
	LaunchArgs      []string
}

type slotState int

const (
	stateAvailable slotState = iota
	stateInUse
	stateDestroyed
)

type slot struct {
	handle     browser.Handle
	createdAt  time.Time
	lastUsed   time.Time
	usageCount int
	state      slotState
}

// Pool is the browser slot pool. All mutations are guarded by mu, per spec.
type Pool struct {
	mu        sync.Mutex
	slots     []*slot
	available []int // FIFO of indices into slots

	cfg     func() Config // re-read on every acquire so max_size can rise dynamically
	factory browser.Factory

	errorCount   atomic.Int64
	shuttingDown atomic.Bool

	now func() time.Time
}

// New creates a Pool. cfgFn is consulted on every acquisition and cleanup
// pass so an operator can raise MaxSize at runtime without restarting.
func New(factory browser.Factory, cfgFn func() Config) *Pool {
	return &Pool{factory: factory, cfg: cfgFn, now: time.Now}
}

// Start pre-warms the pool up to MinSize. Call once at startup.
func (p *Pool) Start(ctx context.Context) error {
	cfg := p.cfg()
	for i := 0; i < cfg.MinSize; i++ {
		if err := p.spawn(ctx, cfg); err != nil {
			return fmt.Errorf("pre-warm browser pool: %w", err)
		}
	}
	return nil
}

func (p *Pool) spawn(ctx context.Context, cfg Config) error {
	h, err := p.factory.Launch(ctx, cfg.Engine, cfg.Headless, cfg.LaunchArgs)
	if err != nil {
		p.errorCount.Add(1)
		return err
	}
	p.mu.Lock()
	idx := len(p.slots)
	p.slots = append(p.slots, &slot{handle: h, createdAt: p.now(), lastUsed: p.now(), state: stateAvailable})
	p.available = append(p.available, idx)
	p.mu.Unlock()
	return nil
}

// Stats is a point-in-time snapshot of the pool's composition.
type Stats struct {
	Size        int
	Available   int
	InUse       int
	Utilization float64
	Errors      int64
}

func (p *Pool) statsLocked() Stats {
	inUse := 0
	for _, s := range p.slots {
		if s.state == stateInUse {
			inUse++
		}
	}
	cfg := p.cfg()
	util := 0.0
	if cfg.MaxSize > 0 {
		util = float64(inUse) / float64(cfg.MaxSize)
	}
	return Stats{Size: len(p.slots), Available: len(p.available), InUse: inUse, Utilization: util, Errors: p.errorCount.Load()}
}

// Stats returns a snapshot of the pool's current composition.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// ExhaustedError is raised when Acquire's wait path runs out of attempts.
type ExhaustedError struct {
	Stats Stats
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("browser pool exhausted: size=%d available=%d in_use=%d utilization=%.2f",
		e.Stats.Size, e.Stats.Available, e.Stats.InUse, e.Stats.Utilization)
}

// Acquire returns a ready browser handle and its slot index, growing the
// pool or waiting as needed per spec §4.6's three-step algorithm.
func (p *Pool) Acquire(ctx context.Context) (browser.Handle, int, error) {
	if p.shuttingDown.Load() {
		return nil, -1, apierrors.ErrPoolClosed
	}

	for retry := 0; ; retry++ {
		p.mu.Lock()
		// Fast path.
		if len(p.available) > 0 {
			idx := p.available[0]
			p.available = p.available[1:]
			s := p.slots[idx]
			s.state = stateInUse
			s.lastUsed = p.now()
			s.usageCount++
			h := s.handle
			p.mu.Unlock()
			return h, idx, nil
		}

		// Grow path.
		cfg := p.cfg()
		if len(p.slots) < cfg.MaxSize {
			p.mu.Unlock()
			if err := p.spawn(ctx, cfg); err != nil {
				// fall through to wait path on this iteration
			} else {
				continue // re-enter loop; fast path will now find it
			}
			p.mu.Lock()
		}

		stats := p.statsLocked()
		maxAttempts := int(math.Min(10, 5+5*stats.Utilization))
		p.mu.Unlock()

		if retry >= maxAttempts {
			return nil, -1, &ExhaustedError{Stats: stats}
		}

		baseWait := 0.2 * (1 + stats.Utilization)
		wait := math.Min(8.0, baseWait*math.Pow(2, float64(retry)))
		jitter := wait * 0.2 * (rand.Float64()*2 - 1)
		wait += jitter
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(time.Duration(wait * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, -1, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release returns slotIndex to the pool. If healthy is false, or the slot has
// exceeded MaxAge, it is destroyed and replaced instead of being reused.
func (p *Pool) Release(ctx context.Context, slotIndex int, healthy bool) {
	p.mu.Lock()
	if slotIndex < 0 || slotIndex >= len(p.slots) {
		p.mu.Unlock()
		return
	}
	s := p.slots[slotIndex]
	cfg := p.cfg()
	overAge := cfg.MaxAge > 0 && p.now().Sub(s.createdAt) > cfg.MaxAge

	if !healthy || overAge {
		p.mu.Unlock()
		p.recycleSlot(ctx, slotIndex, cfg)
		return
	}

	s.state = stateAvailable
	s.lastUsed = p.now()
	p.available = append(p.available, slotIndex)
	p.mu.Unlock()
}

// recycleSlot destroys the handle at index and, if the pool is below
// MinSize, replaces it with a fresh one in the same slot position.
func (p *Pool) recycleSlot(ctx context.Context, index int, cfg Config) {
	p.mu.Lock()
	if index < 0 || index >= len(p.slots) || p.slots[index].state == stateDestroyed {
		p.mu.Unlock()
		return
	}
	old := p.slots[index]
	old.state = stateDestroyed
	p.mu.Unlock()

	_ = old.handle.Close(ctx)

	p.mu.Lock()
	size := p.sizeLocked()
	p.mu.Unlock()

	if size < cfg.MinSize || size <= cfg.MaxSize {
		h, err := p.factory.Launch(ctx, cfg.Engine, cfg.Headless, cfg.LaunchArgs)
		if err != nil {
			p.errorCount.Add(1)
			p.removeSlot(index)
			return
		}
		p.mu.Lock()
		p.slots[index] = &slot{handle: h, createdAt: p.now(), lastUsed: p.now(), state: stateAvailable}
		p.available = append(p.available, index)
		p.mu.Unlock()
		return
	}
	p.removeSlot(index)
}

func (p *Pool) sizeLocked() int {
	n := 0
	for _, s := range p.slots {
		if s.state != stateDestroyed {
			n++
		}
	}
	return n
}

// removeSlot marks index permanently gone and drops it from the available
// FIFO (the slots slice keeps a destroyed placeholder to preserve indices).
func (p *Pool) removeSlot(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index >= 0 && index < len(p.slots) {
		p.slots[index].state = stateDestroyed
	}
	filtered := p.available[:0]
	for _, idx := range p.available {
		if idx != index {
			filtered = append(filtered, idx)
		}
	}
	p.available = filtered
}

// RecycleOlderThan destroys and replaces every slot (available or in-use)
// older than maxAge, used by the watchdog's force_recycle_age rule.
func (p *Pool) RecycleOlderThan(ctx context.Context, maxAge time.Duration) {
	cfg := p.cfg()
	now := p.now()

	p.mu.Lock()
	var aged []int
	for i, s := range p.slots {
		if s.state != stateDestroyed && now.Sub(s.createdAt) > maxAge {
			aged = append(aged, i)
		}
	}
	p.mu.Unlock()

	for _, idx := range aged {
		p.recycleSlot(ctx, idx, cfg)
	}
}

// Cleanup runs one proactive maintenance pass (spec §4.6): recycling
// over-age/idle/overused slots under load, and topping the pool up when
// utilization is high.
func (p *Pool) Cleanup(ctx context.Context) {
	cfg := p.cfg()
	p.mu.Lock()
	stats := p.statsLocked()
	highLoad := stats.Utilization > 0.8

	var toRecycle []int
	now := p.now()
	for _, idx := range p.available {
		s := p.slots[idx]
		idle := now.Sub(s.lastUsed)
		age := now.Sub(s.createdAt)
		if highLoad && s.usageCount > 50 {
			toRecycle = append(toRecycle, idx)
			continue
		}
		if cfg.MaxAge > 0 && age > cfg.MaxAge {
			toRecycle = append(toRecycle, idx)
			continue
		}
		if cfg.IdleTimeout > 0 && idle > cfg.IdleTimeout {
			toRecycle = append(toRecycle, idx)
		}
	}
	size := p.sizeLocked()
	p.mu.Unlock()

	for _, idx := range toRecycle {
		p.recycleSlot(ctx, idx, cfg)
	}

	if highLoad && size < cfg.MaxSize {
		grow := 5
		if room := cfg.MaxSize - size; room < grow {
			grow = room
		}
		for i := 0; i < grow; i++ {
			_ = p.spawn(ctx, cfg)
		}
	}

	p.ensureMinSize(ctx, cfg)
}

func (p *Pool) ensureMinSize(ctx context.Context, cfg Config) {
	p.mu.Lock()
	size := p.sizeLocked()
	p.mu.Unlock()
	for size < cfg.MinSize {
		if err := p.spawn(ctx, cfg); err != nil {
			return
		}
		size++
	}
}

// RunCleanupLoop runs Cleanup every CleanupInterval until stop is closed.
func (p *Pool) RunCleanupLoop(ctx context.Context, stop <-chan struct{}) {
	cfg := p.cfg()
	if cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Cleanup(ctx)
		}
	}
}

// ForceRecycle destroys up to n slots, preferring in-use ones (deadlock
// recovery), then refills to MinSize. Invoked by the watchdog.
func (p *Pool) ForceRecycle(ctx context.Context, n int) {
	cfg := p.cfg()
	p.mu.Lock()
	var inUse, avail []int
	for i, s := range p.slots {
		switch s.state {
		case stateInUse:
			inUse = append(inUse, i)
		case stateAvailable:
			avail = append(avail, i)
		}
	}
	candidates := append(inUse, avail...)
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	p.mu.Unlock()

	for _, idx := range candidates {
		p.recycleSlot(ctx, idx, cfg)
	}
	p.ensureMinSize(ctx, cfg)
}

// NewContext creates a new browsing context on the handle at slotIndex.
func (p *Pool) NewContext(ctx context.Context, slotIndex int, opts browser.ContextOptions) (browser.Context, error) {
	p.mu.Lock()
	if slotIndex < 0 || slotIndex >= len(p.slots) || p.slots[slotIndex].state == stateDestroyed {
		p.mu.Unlock()
		return nil, fmt.Errorf("slot %d is not available", slotIndex)
	}
	h := p.slots[slotIndex].handle
	p.mu.Unlock()
	return h.NewContext(ctx, opts)
}

// ManagedContext is a scoped acquisition guaranteeing the context and slot
// are released on every exit path.
type ManagedContext struct {
	Context   browser.Context
	SlotIndex int

	pool *Pool
}

// Release closes the context and returns the slot, marking it unhealthy if
// setup failed (err != nil) so the pool recycles it instead of reusing it.
func (m *ManagedContext) Release(ctx context.Context, err error) {
	if m.Context != nil {
		_ = m.Context.Close(ctx)
	}
	m.pool.Release(ctx, m.SlotIndex, err == nil)
}

// AcquireManagedContext acquires a slot and opens a context on it in one
// step, returning a ManagedContext whose Release always balances both.
func (p *Pool) AcquireManagedContext(ctx context.Context, opts browser.ContextOptions) (*ManagedContext, error) {
	handle, slotIndex, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	bctx, err := handle.NewContext(ctx, opts)
	mc := &ManagedContext{Context: bctx, SlotIndex: slotIndex, pool: p}
	if err != nil {
		mc.Release(ctx, err)
		return nil, fmt.Errorf("create context on slot %d: %w", slotIndex, err)
	}
	return mc, nil
}

// Health reports whether the pool has at least one usable slot.
func (p *Pool) Health() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeLocked() > 0
}

// Shutdown closes every context-owning handle with per-resource timeouts,
// logging but never propagating individual close errors.
func (p *Pool) Shutdown(ctx context.Context, perResourceTimeout time.Duration) error {
	p.shuttingDown.Store(true)
	p.mu.Lock()
	handles := make([]browser.Handle, 0, len(p.slots))
	for _, s := range p.slots {
		if s.state != stateDestroyed {
			handles = append(handles, s.handle)
		}
	}
	p.slots = nil
	p.available = nil
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, perResourceTimeout)
			defer cancel()
			if err := h.Close(cctx); err != nil {
				slog.Warn("browser pool shutdown: close handle failed", "error", err)
			}
			return nil // close errors are logged, never propagated
		})
	}
	return g.Wait()
}
