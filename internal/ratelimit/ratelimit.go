// Package ratelimit implements the token-bucket admission rule used for
// per-user batch submission tiers.
package ratelimit

import (
	"sync"
	"time"
)

// Tier names for the default tiered limiter configurations.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Config is a token bucket's rate/per/burst parameters.
type Config struct {
	Rate  float64 // tokens granted per Per
	Per   time.Duration
	Burst float64
}

// DefaultTierConfigs returns the default free/basic/premium/enterprise tiers.
func DefaultTierConfigs() map[string]Config {
	return map[string]Config{
		TierFree:       {Rate: 10, Per: time.Minute, Burst: 10},
		TierBasic:      {Rate: 60, Per: time.Minute, Burst: 30},
		TierPremium:    {Rate: 300, Per: time.Minute, Burst: 100},
		TierEnterprise: {Rate: 1200, Per: time.Minute, Burst: 400},
	}
}

// maxWait is the longest an Acquire call will sleep before giving up (spec §4.2).
const maxWait = 5 * time.Second

// Limiter is a single token bucket. Safe for concurrent use.
type Limiter struct {
	mu sync.Mutex

	cfg        Config
	tokens     float64
	lastUpdate time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Limiter starting full (tokens = burst).
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:        cfg,
		tokens:     cfg.Burst,
		lastUpdate: time.Now(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastUpdate)
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed.Seconds() * (l.cfg.Rate / l.cfg.Per.Seconds())
	if l.tokens > l.cfg.Burst {
		l.tokens = l.cfg.Burst
	}
	l.lastUpdate = now
}

// Acquire attempts to take n tokens. If insufficient tokens are available but
// the computed wait is within 5s, it sleeps and succeeds (consuming the
// bucket down to zero); otherwise it fails immediately.
func (l *Limiter) Acquire(n float64) bool {
	l.mu.Lock()
	now := l.now()
	l.refill(now)

	if l.tokens >= n {
		l.tokens -= n
		l.mu.Unlock()
		return true
	}

	deficit := n - l.tokens
	wait := time.Duration(deficit * l.cfg.Per.Seconds() / l.cfg.Rate * float64(time.Second))
	if wait > maxWait {
		l.mu.Unlock()
		return false
	}
	l.tokens = 0
	l.lastUpdate = now
	l.mu.Unlock()

	l.sleep(wait)
	return true
}

// Registry hands out per-user Limiters built from tiered defaults, creating
// them lazily (mirrors retry.BreakerRegistry's pattern).
type Registry struct {
	mu       sync.Mutex
	tiers    map[string]Config
	limiters map[string]*Limiter
	tierOf   func(userID string) string
}

// NewRegistry builds a Registry. tierOf resolves a user id to one of the
// configured tier names; unknown tiers fall back to TierFree.
func NewRegistry(tiers map[string]Config, tierOf func(userID string) string) *Registry {
	return &Registry{tiers: tiers, limiters: make(map[string]*Limiter), tierOf: tierOf}
}

// Get returns the Limiter for userID, creating it from the user's tier config
// on first use.
func (r *Registry) Get(userID string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[userID]; ok {
		return l
	}
	tier := r.tierOf(userID)
	cfg, ok := r.tiers[tier]
	if !ok {
		cfg = r.tiers[TierFree]
	}
	l := New(cfg)
	r.limiters[userID] = l
	return l
}
