package config

import "time"

// DurableStoreConfig tunes the optional SQL mirror for batch job snapshots
// (internal/storage/sql). Disabled by default: the batch engine's in-memory
// store is authoritative, and the mirror is purely a restart-survival aid.
type DurableStoreConfig struct {
	Enabled         bool          `env:"SHOTPOOL_DURABLE_STORE_ENABLED" default:"false"`
	Driver          string        `env:"SHOTPOOL_DURABLE_STORE_DRIVER" default:"sqlite"` // pgx, sqlite
	DSN             string        `env:"SHOTPOOL_DURABLE_STORE_DSN" default:"./data/shotpool.db"`
	MaxOpenConns    int           `env:"SHOTPOOL_DURABLE_STORE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `env:"SHOTPOOL_DURABLE_STORE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `env:"SHOTPOOL_DURABLE_STORE_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `env:"SHOTPOOL_DURABLE_STORE_CONN_MAX_IDLE_TIME" default:"1m"`
}
