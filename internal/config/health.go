package config

import "time"

// HealthConfig tunes internal/health.CheckerConfig.
type HealthConfig struct {
	Interval     time.Duration `env:"SHOTPOOL_HEALTH_INTERVAL" default:"5m"`
	Timeout      time.Duration `env:"SHOTPOOL_HEALTH_TIMEOUT" default:"30s"`
	TestURL      string        `env:"SHOTPOOL_HEALTH_TEST_URL" default:"https://example.com"`
	TargetPort   int           `env:"SHOTPOOL_HEALTH_TARGET_PORT" default:"8080"`
	StartupDelay time.Duration `env:"SHOTPOOL_HEALTH_STARTUP_DELAY" default:"30s"`
}

// WatchdogConfig tunes internal/health.WatchdogConfig.
type WatchdogConfig struct {
	ScanInterval    time.Duration `env:"SHOTPOOL_WATCHDOG_SCAN_INTERVAL" default:"30s"`
	UsageThreshold  float64       `env:"SHOTPOOL_WATCHDOG_USAGE_THRESHOLD" default:"0.8"`
	IdleThreshold   time.Duration `env:"SHOTPOOL_WATCHDOG_IDLE_THRESHOLD" default:"2m"`
	ForceRecycleAge time.Duration `env:"SHOTPOOL_WATCHDOG_FORCE_RECYCLE_AGE" default:"1h"`
}
