// Package config loads shotpool's runtime configuration from environment
// variables using internal/env's reflection-based loader.
package config

import (
	"fmt"

	"github.com/shotpool/shotpool/internal/env"
)

// Config holds every tunable for the screenshotd binary.
type Config struct {
	Env       string `env:"SHOTPOOL_ENV" default:"dev"` // dev, prod
	AdminAddr string `env:"SHOTPOOL_ADMIN_ADDR" default:":8080"`

	Storage        StorageConfig
	Signer         SignerConfig
	BrowserPool    BrowserPoolConfig
	TabPool        TabPoolConfig
	Pipeline       PipelineConfig
	ResultCache    ResultCacheConfig
	ContentCache   ContentCacheConfig
	Throttle       ThrottleConfig
	RateLimit      RateLimitConfig
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Batch          BatchConfig
	Health         HealthConfig
	Watchdog       WatchdogConfig
	Observability  ObservabilityConfig
	DurableStore   DurableStoreConfig
}

// Load parses environment variables into a Config, applying defaults and
// running every nested Validate().
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
