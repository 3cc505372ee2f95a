package config

import (
	"fmt"
	"time"
)

// ThrottleConfig tunes internal/throttle.New.
type ThrottleConfig struct {
	MaxConcurrent int `env:"SHOTPOOL_THROTTLE_MAX_CONCURRENT" default:"20"`
	QueueSize     int `env:"SHOTPOOL_THROTTLE_QUEUE_SIZE" default:"100"`
}

func (c ThrottleConfig) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("throttle max concurrent must be >= 1, got %d", c.MaxConcurrent)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("throttle queue size must be >= 0, got %d", c.QueueSize)
	}
	return nil
}

// RateLimitConfig holds the per-tier token-bucket settings (spec §4.2).
// Tiers default to internal/ratelimit.DefaultTierConfigs and are overridden
// individually via their own env vars.
type RateLimitConfig struct {
	FreeRate       float64       `env:"SHOTPOOL_RATELIMIT_FREE_RATE" default:"10"`
	FreePer        time.Duration `env:"SHOTPOOL_RATELIMIT_FREE_PER" default:"1m"`
	FreeBurst      float64       `env:"SHOTPOOL_RATELIMIT_FREE_BURST" default:"10"`
	BasicRate      float64       `env:"SHOTPOOL_RATELIMIT_BASIC_RATE" default:"60"`
	BasicPer       time.Duration `env:"SHOTPOOL_RATELIMIT_BASIC_PER" default:"1m"`
	BasicBurst     float64       `env:"SHOTPOOL_RATELIMIT_BASIC_BURST" default:"30"`
	PremiumRate    float64       `env:"SHOTPOOL_RATELIMIT_PREMIUM_RATE" default:"300"`
	PremiumPer     time.Duration `env:"SHOTPOOL_RATELIMIT_PREMIUM_PER" default:"1m"`
	PremiumBurst   float64       `env:"SHOTPOOL_RATELIMIT_PREMIUM_BURST" default:"100"`
	EnterpriseRate  float64       `env:"SHOTPOOL_RATELIMIT_ENTERPRISE_RATE" default:"1200"`
	EnterprisePer   time.Duration `env:"SHOTPOOL_RATELIMIT_ENTERPRISE_PER" default:"1m"`
	EnterpriseBurst float64       `env:"SHOTPOOL_RATELIMIT_ENTERPRISE_BURST" default:"400"`
}

// Tiers converts the flat env fields into the map ratelimit.Registry expects,
// falling back to internal/ratelimit.DefaultTierConfigs shape.
func (c RateLimitConfig) Tiers() map[string]RatelimitTier {
	return map[string]RatelimitTier{
		"free":       {Rate: c.FreeRate, Per: c.FreePer, Burst: c.FreeBurst},
		"basic":      {Rate: c.BasicRate, Per: c.BasicPer, Burst: c.BasicBurst},
		"premium":    {Rate: c.PremiumRate, Per: c.PremiumPer, Burst: c.PremiumBurst},
		"enterprise": {Rate: c.EnterpriseRate, Per: c.EnterprisePer, Burst: c.EnterpriseBurst},
	}
}

// RatelimitTier mirrors internal/ratelimit.Config's field shape so callers
// can convert without importing internal/config into internal/ratelimit.
type RatelimitTier struct {
	Rate  float64
	Per   time.Duration
	Burst float64
}

// RetryConfig tunes internal/retry.RetryConfig.
type RetryConfig struct {
	MaxRetries     int           `env:"SHOTPOOL_RETRY_MAX_RETRIES" default:"3"`
	BaseDelay      time.Duration `env:"SHOTPOOL_RETRY_BASE_DELAY" default:"200ms"`
	MaxDelay       time.Duration `env:"SHOTPOOL_RETRY_MAX_DELAY" default:"10s"`
	JitterFraction float64       `env:"SHOTPOOL_RETRY_JITTER_FRACTION" default:"0.2"`
}

// CircuitBreakerConfig tunes internal/retry.CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `env:"SHOTPOOL_CIRCUIT_FAILURE_THRESHOLD" default:"5"`
	ResetTimeout     time.Duration `env:"SHOTPOOL_CIRCUIT_RESET_TIMEOUT" default:"30s"`
}

func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("circuit breaker failure threshold must be >= 1, got %d", c.FailureThreshold)
	}
	return nil
}
