package config

import "time"

// BatchConfig tunes internal/batch.StoreConfig and internal/batch.EngineConfig.
type BatchConfig struct {
	MaxJobs         int           `env:"SHOTPOOL_BATCH_MAX_JOBS" default:"1000"`
	TerminalTTL     time.Duration `env:"SHOTPOOL_BATCH_TERMINAL_TTL" default:"1h"`
	CleanupInterval time.Duration `env:"SHOTPOOL_BATCH_CLEANUP_INTERVAL" default:"1h"`
	ScanInterval    time.Duration `env:"SHOTPOOL_BATCH_SCAN_INTERVAL" default:"1s"`
	WebhookTimeout  time.Duration `env:"SHOTPOOL_BATCH_WEBHOOK_TIMEOUT" default:"10s"`
}
