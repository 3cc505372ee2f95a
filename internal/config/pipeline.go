package config

import "time"

// PipelineConfig tunes internal/pipeline.Config.
type PipelineConfig struct {
	NavTimeout       time.Duration `env:"SHOTPOOL_NAV_TIMEOUT" default:"30s"`
	DefaultWidth     int           `env:"SHOTPOOL_DEFAULT_WIDTH" default:"1280"`
	DefaultHeight    int           `env:"SHOTPOOL_DEFAULT_HEIGHT" default:"800"`
	UserAgent        string        `env:"SHOTPOOL_USER_AGENT"`
	ScreenshotDir    string        `env:"SHOTPOOL_SCREENSHOT_DIR" default:"./data/screenshots"`
	UseTabPool       bool          `env:"SHOTPOOL_USE_TAB_POOL" default:"true"`
	ComplexSiteHints []string      `env:"SHOTPOOL_COMPLEX_SITE_HINTS"`

	BlockFonts      bool `env:"SHOTPOOL_BLOCK_FONTS"`
	BlockMedia      bool `env:"SHOTPOOL_BLOCK_MEDIA"`
	BlockAnalytics  bool `env:"SHOTPOOL_BLOCK_ANALYTICS" default:"true"`
	BlockThirdParty bool `env:"SHOTPOOL_BLOCK_THIRD_PARTY"`
	BlockAds        bool `env:"SHOTPOOL_BLOCK_ADS" default:"true"`
	BlockSocial     bool `env:"SHOTPOOL_BLOCK_SOCIAL"`
}

// ResultCacheConfig tunes internal/resultcache.Cache.
type ResultCacheConfig struct {
	MaxItems int           `env:"SHOTPOOL_RESULT_CACHE_MAX_ITEMS" default:"10000"`
	TTL      time.Duration `env:"SHOTPOOL_RESULT_CACHE_TTL" default:"1h"`
}

// ContentCacheConfig tunes internal/contentcache.Config.
type ContentCacheConfig struct {
	Enabled         bool          `env:"SHOTPOOL_CONTENT_CACHE_ENABLED" default:"true"`
	Dir             string        `env:"SHOTPOOL_CONTENT_CACHE_DIR" default:"./data/content-cache"`
	MaxFileSize     int64         `env:"SHOTPOOL_CONTENT_CACHE_MAX_FILE_SIZE" default:"10485760"`
	MaxTotalSize    int64         `env:"SHOTPOOL_CONTENT_CACHE_MAX_TOTAL_SIZE" default:"1073741824"`
	TTL             time.Duration `env:"SHOTPOOL_CONTENT_CACHE_TTL" default:"24h"`
	CleanupInterval time.Duration `env:"SHOTPOOL_CONTENT_CACHE_CLEANUP_INTERVAL" default:"10m"`
	PriorityDomains []string      `env:"SHOTPOOL_CONTENT_CACHE_PRIORITY_DOMAINS"`
	AllContentMode  bool          `env:"SHOTPOOL_CONTENT_CACHE_ALL_CONTENT_MODE"`
}
