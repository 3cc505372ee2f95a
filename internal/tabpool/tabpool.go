// Package tabpool layers reusable browser tabs on top of a browser pool
// slot, avoiding a fresh page (and its navigation cost) on every request
// (spec §4.7).
package tabpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shotpool/shotpool/internal/browser"
)

// Config tunes tab reuse and lifecycle.
type Config struct {
	ReuseEnabled      bool
	MaxTabsPerBrowser int
	MaxAge            time.Duration
	IdleTimeout       time.Duration
	CleanupInterval   time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}
	return c
}

// Entry tracks one tab's lifecycle state.
type Entry struct {
	Page       browser.Page
	SlotIndex  int
	isBusy     bool
	usageCount int
	createdAt  time.Time
	lastUsed   time.Time
}

// ErrNoTabAvailable is returned when GetTab's poll deadline elapses.
var ErrNoTabAvailable = fmt.Errorf("no tab available")

// Pool manages per-slot tab lists on top of a browser pool.
type Pool struct {
	mu    sync.Mutex
	tabs  map[int][]*Entry // slotIndex -> entries
	cfg   func() Config
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Pool. cfgFn is consulted on every call so reuse settings can
// change at runtime.
func New(cfgFn func() Config) *Pool {
	return &Pool{tabs: make(map[int][]*Entry), cfg: cfgFn, now: time.Now, sleep: time.Sleep}
}

func (p *Pool) totalForSlot(slotIndex int) int {
	return len(p.tabs[slotIndex])
}

// GetTab returns a ready page for slotIndex, reusing an existing tab when
// possible, creating one under MaxTabsPerBrowser, or polling until one frees
// up (spec §4.7 steps 1–3).
func (p *Pool) GetTab(ctx context.Context, slotIndex int, bctx browser.Context, width, height int) (browser.Page, *Entry, error) {
	cfg := p.cfg().withDefaults()

	if cfg.ReuseEnabled {
		if e := p.claimAvailable(slotIndex, width, height, ctx); e != nil {
			return e.Page, e, nil
		}
	}

	p.mu.Lock()
	canCreate := p.totalForSlot(slotIndex) < cfg.MaxTabsPerBrowser
	p.mu.Unlock()
	if canCreate {
		page, err := bctx.NewPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create tab: %w", err)
		}
		if err := page.SetViewport(ctx, width, height); err != nil {
			return nil, nil, fmt.Errorf("set tab viewport: %w", err)
		}
		e := &Entry{Page: page, SlotIndex: slotIndex, isBusy: true, createdAt: p.now(), lastUsed: p.now(), usageCount: 1}
		p.mu.Lock()
		p.tabs[slotIndex] = append(p.tabs[slotIndex], e)
		p.mu.Unlock()
		return page, e, nil
	}

	deadline := p.now().Add(cfg.PollTimeout)
	for p.now().Before(deadline) {
		if e := p.claimAvailable(slotIndex, width, height, ctx); e != nil {
			return e.Page, e, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		p.sleep(cfg.PollInterval)
	}
	return nil, nil, ErrNoTabAvailable
}

// claimAvailable scans slotIndex first, then any slot, for a free entry.
func (p *Pool) claimAvailable(slotIndex int, width, height int, ctx context.Context) *Entry {
	p.mu.Lock()
	var found *Entry
	for _, e := range p.tabs[slotIndex] {
		if !e.isBusy {
			found = e
			break
		}
	}
	if found == nil {
		for _, entries := range p.tabs {
			for _, e := range entries {
				if !e.isBusy {
					found = e
					break
				}
			}
			if found != nil {
				break
			}
		}
	}
	if found != nil {
		found.isBusy = true
		found.usageCount++
		found.lastUsed = p.now()
	}
	p.mu.Unlock()

	if found == nil {
		return nil
	}
	if err := found.Page.SetViewport(ctx, width, height); err != nil {
		// treat as unusable; release it as unhealthy and report not-found
		p.ReleaseTab(ctx, found, false)
		return nil
	}
	return found
}

// ReleaseTab returns a tab to the available pool, or destroys it if it's
// unhealthy, reuse is disabled, or it has aged/worn out (spec §4.7).
func (p *Pool) ReleaseTab(ctx context.Context, e *Entry, healthy bool) {
	cfg := p.cfg().withDefaults()
	age := p.now().Sub(e.createdAt)

	if !healthy || !cfg.ReuseEnabled || (cfg.MaxAge > 0 && age > cfg.MaxAge) || e.usageCount > 50 {
		p.destroy(ctx, e)
		return
	}

	if err := e.Page.Reset(ctx, 5*time.Second); err != nil {
		p.destroy(ctx, e)
		return
	}

	p.mu.Lock()
	e.isBusy = false
	e.lastUsed = p.now()
	p.mu.Unlock()
}

func (p *Pool) destroy(ctx context.Context, e *Entry) {
	_ = e.Page.Close(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.tabs[e.SlotIndex]
	for i, cand := range entries {
		if cand == e {
			p.tabs[e.SlotIndex] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
}

// Stats reports tab counts for observability and the busy+available=total
// invariant.
type Stats struct {
	Total     int
	Busy      int
	Available int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s Stats
	for _, entries := range p.tabs {
		for _, e := range entries {
			s.Total++
			if e.isBusy {
				s.Busy++
			} else {
				s.Available++
			}
		}
	}
	return s
}

// Cleanup closes not-busy tabs idle or aged past their limits.
func (p *Pool) Cleanup(ctx context.Context) {
	cfg := p.cfg().withDefaults()
	now := p.now()

	p.mu.Lock()
	var toClose []*Entry
	for _, entries := range p.tabs {
		for _, e := range entries {
			if e.isBusy {
				continue
			}
			idle := now.Sub(e.lastUsed)
			age := now.Sub(e.createdAt)
			if (cfg.IdleTimeout > 0 && idle > cfg.IdleTimeout) || (cfg.MaxAge > 0 && age > cfg.MaxAge) {
				toClose = append(toClose, e)
			}
		}
	}
	p.mu.Unlock()

	for _, e := range toClose {
		p.destroy(ctx, e)
	}
}

// RunCleanupLoop runs Cleanup every CleanupInterval until stop is closed.
func (p *Pool) RunCleanupLoop(ctx context.Context, stop <-chan struct{}) {
	cfg := p.cfg().withDefaults()
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

// ReleaseSlot removes bookkeeping for every tab on slotIndex, used when the
// owning browser slot itself is being recycled/destroyed.
func (p *Pool) ReleaseSlot(ctx context.Context, slotIndex int) {
	p.mu.Lock()
	entries := p.tabs[slotIndex]
	delete(p.tabs, slotIndex)
	p.mu.Unlock()

	for _, e := range entries {
		_ = e.Page.Close(ctx)
	}
}
