package config

import (
	"fmt"
	"time"
)

// BrowserPoolConfig tunes internal/browserpool.Config.
type BrowserPoolConfig struct {
	MinSize         int           `env:"SHOTPOOL_BROWSER_MIN_SIZE" default:"2"`
	MaxSize         int           `env:"SHOTPOOL_BROWSER_MAX_SIZE" default:"10"`
	IdleTimeout     time.Duration `env:"SHOTPOOL_BROWSER_IDLE_TIMEOUT" default:"5m"`
	MaxAge          time.Duration `env:"SHOTPOOL_BROWSER_MAX_AGE" default:"30m"`
	CleanupInterval time.Duration `env:"SHOTPOOL_BROWSER_CLEANUP_INTERVAL" default:"1m"`
	Engine          string        `env:"SHOTPOOL_BROWSER_ENGINE" default:"chromium"`
	Headless        bool          `env:"SHOTPOOL_BROWSER_HEADLESS" default:"true"`
	LaunchArgs      []string      `env:"SHOTPOOL_BROWSER_LAUNCH_ARGS"`
}

func (c BrowserPoolConfig) Validate() error {
	if c.MinSize < 0 {
		return fmt.Errorf("browser pool min size must be >= 0, got %d", c.MinSize)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("browser pool max size must be >= 1, got %d", c.MaxSize)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("browser pool min size (%d) exceeds max size (%d)", c.MinSize, c.MaxSize)
	}
	return nil
}

// TabPoolConfig tunes internal/tabpool.Config.
type TabPoolConfig struct {
	ReuseEnabled      bool          `env:"SHOTPOOL_TABPOOL_REUSE_ENABLED" default:"true"`
	MaxTabsPerBrowser int           `env:"SHOTPOOL_TABPOOL_MAX_TABS_PER_BROWSER" default:"5"`
	MaxAge            time.Duration `env:"SHOTPOOL_TABPOOL_MAX_AGE" default:"10m"`
	IdleTimeout       time.Duration `env:"SHOTPOOL_TABPOOL_IDLE_TIMEOUT" default:"2m"`
	CleanupInterval   time.Duration `env:"SHOTPOOL_TABPOOL_CLEANUP_INTERVAL" default:"1m"`
	PollInterval      time.Duration `env:"SHOTPOOL_TABPOOL_POLL_INTERVAL" default:"100ms"`
	PollTimeout       time.Duration `env:"SHOTPOOL_TABPOOL_POLL_TIMEOUT" default:"30s"`
}

func (c TabPoolConfig) Validate() error {
	if c.MaxTabsPerBrowser < 1 {
		return fmt.Errorf("tab pool max tabs per browser must be >= 1, got %d", c.MaxTabsPerBrowser)
	}
	return nil
}
