// Command screenshotd runs the screenshot service: browser pool, tab pool,
// capture pipeline, and batch engine behind a thin admin HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqlstore "github.com/shotpool/shotpool/internal/storage/sql"

	"github.com/shotpool/shotpool/internal/batch"
	"github.com/shotpool/shotpool/internal/browser/rodengine"
	"github.com/shotpool/shotpool/internal/browserpool"
	"github.com/shotpool/shotpool/internal/config"
	"github.com/shotpool/shotpool/internal/contentcache"
	"github.com/shotpool/shotpool/internal/health"
	"github.com/shotpool/shotpool/internal/metrics"
	"github.com/shotpool/shotpool/internal/pipeline"
	"github.com/shotpool/shotpool/internal/ratelimit"
	"github.com/shotpool/shotpool/internal/resultcache"
	"github.com/shotpool/shotpool/internal/retry"
	"github.com/shotpool/shotpool/internal/signer"
	"github.com/shotpool/shotpool/internal/storage/fs"
	"github.com/shotpool/shotpool/internal/storage/gcs"
	"github.com/shotpool/shotpool/internal/storage/objectstore"
	"github.com/shotpool/shotpool/internal/tabpool"
	"github.com/shotpool/shotpool/internal/throttle"
	"github.com/shotpool/shotpool/internal/urlrewrite"
	"github.com/shotpool/shotpool/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("screenshotd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	providers, err := observability.Init(ctx, cfg.Observability.ServiceName, cfg.Observability.Enabled)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			providers.Logger.Error("observability shutdown failed", "error", err)
		}
	}()
	log := providers.Logger

	store, err := buildObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("build object store: %w", err)
	}

	sgn := signer.NewHMACSigner([]byte(cfg.Signer.Secret), cfg.Signer.BaseURL, cfg.Signer.TTL)

	rewriter := urlrewrite.NewTableRewriter(nil)

	browserPool := browserpool.New(rodengine.New(), func() browserpool.Config {
		return browserpool.Config{
			MinSize:         cfg.BrowserPool.MinSize,
			MaxSize:         cfg.BrowserPool.MaxSize,
			IdleTimeout:     cfg.BrowserPool.IdleTimeout,
			MaxAge:          cfg.BrowserPool.MaxAge,
			CleanupInterval: cfg.BrowserPool.CleanupInterval,
			Engine:          cfg.BrowserPool.Engine,
			Headless:        cfg.BrowserPool.Headless,
			LaunchArgs:      cfg.BrowserPool.LaunchArgs,
		}
	})
	if err := browserPool.Start(ctx); err != nil {
		return fmt.Errorf("start browser pool: %w", err)
	}
	defer browserPool.Shutdown(context.Background(), 10*time.Second)
	browserCleanupStop := make(chan struct{})
	go browserPool.RunCleanupLoop(ctx, browserCleanupStop)
	defer close(browserCleanupStop)

	tabPool := tabpool.New(func() tabpool.Config {
		return tabpool.Config{
			ReuseEnabled:      cfg.TabPool.ReuseEnabled,
			MaxTabsPerBrowser: cfg.TabPool.MaxTabsPerBrowser,
			MaxAge:            cfg.TabPool.MaxAge,
			IdleTimeout:       cfg.TabPool.IdleTimeout,
			CleanupInterval:   cfg.TabPool.CleanupInterval,
			PollInterval:      cfg.TabPool.PollInterval,
			PollTimeout:       cfg.TabPool.PollTimeout,
		}
	})
	tabCleanupStop := make(chan struct{})
	go tabPool.RunCleanupLoop(ctx, tabCleanupStop)
	defer close(tabCleanupStop)

	watchdog := health.NewWatchdog(health.WatchdogConfig{
		ScanInterval:    cfg.Watchdog.ScanInterval,
		UsageThreshold:  cfg.Watchdog.UsageThreshold,
		IdleThreshold:   cfg.Watchdog.IdleThreshold,
		ForceRecycleAge: cfg.Watchdog.ForceRecycleAge,
	}, browserPool)
	watchdogStop := make(chan struct{})
	go watchdog.Run(ctx, watchdogStop)
	defer close(watchdogStop)

	mcs := metrics.New(metrics.AlertThresholds{
		ErrorRate:    0.05,
		P95LatencyMs: 5000,
		MemoryUsage:  0.9,
		PoolUsage:    0.9,
	})

	th := throttle.New(cfg.Throttle.MaxConcurrent, cfg.Throttle.QueueSize)
	resultCache := resultcache.New(cfg.ResultCache.MaxItems, cfg.ResultCache.TTL)
	contentCache := contentcache.New(contentcache.Config{
		Dir:             cfg.ContentCache.Dir,
		MaxFileSize:     cfg.ContentCache.MaxFileSize,
		MaxTotalSize:    cfg.ContentCache.MaxTotalSize,
		TTL:             cfg.ContentCache.TTL,
		CleanupInterval: cfg.ContentCache.CleanupInterval,
		PriorityDomains: cfg.ContentCache.PriorityDomains,
		AllContentMode:  cfg.ContentCache.AllContentMode,
		Enabled:         cfg.ContentCache.Enabled,
	})
	if cfg.ContentCache.Enabled {
		if err := contentCache.EnsureDir(); err != nil {
			return fmt.Errorf("prepare content cache dir: %w", err)
		}
		stop := make(chan struct{})
		defer close(stop)
		go contentCache.RunCleanupLoop(stop)
	}

	breakers := retry.NewBreakerRegistry(cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.ResetTimeout)
	retryCfg := retry.RetryConfig{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		JitterFraction: cfg.Retry.JitterFraction,
	}

	pl := pipeline.New(
		pipeline.Config{
			NavTimeout:    cfg.Pipeline.NavTimeout,
			DefaultWidth:  cfg.Pipeline.DefaultWidth,
			DefaultHeight: cfg.Pipeline.DefaultHeight,
			UserAgent:     cfg.Pipeline.UserAgent,
			Block: pipeline.BlockFlags{
				Fonts:      cfg.Pipeline.BlockFonts,
				Media:      cfg.Pipeline.BlockMedia,
				Analytics:  cfg.Pipeline.BlockAnalytics,
				ThirdParty: cfg.Pipeline.BlockThirdParty,
				Ads:        cfg.Pipeline.BlockAds,
				Social:     cfg.Pipeline.BlockSocial,
			},
			ScreenshotDir:               cfg.Pipeline.ScreenshotDir,
			UseTabPool:                  cfg.Pipeline.UseTabPool,
			ComplexSiteHints:            cfg.Pipeline.ComplexSiteHints,
			ContentCacheEnabled:         cfg.ContentCache.Enabled,
			ContentCachePriorityDomains: cfg.ContentCache.PriorityDomains,
			ContentCacheAllContentMode:  cfg.ContentCache.AllContentMode,
		},
		th, rewriter, resultCache, contentCache, browserPool, tabPool, sgn, store, mcs, watchdog,
		retryCfg, breakers,
	)

	var mirror batch.Mirror
	if cfg.DurableStore.Enabled {
		repo, err := sqlstore.NewStore(ctx, sqlstore.DBConfig{
			Driver:          cfg.DurableStore.Driver,
			DSN:             cfg.DurableStore.DSN,
			MaxOpenConns:    cfg.DurableStore.MaxOpenConns,
			MaxIdleConns:    cfg.DurableStore.MaxIdleConns,
			ConnMaxLifetime: cfg.DurableStore.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.DurableStore.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("build durable mirror: %w", err)
		}
		defer repo.Close()
		mirror = repo
	}

	engine := batch.NewEngine(batch.EngineConfig{
		ScanInterval: cfg.Batch.ScanInterval,
		WebhookHTTP:  &http.Client{Timeout: cfg.Batch.WebhookTimeout},
		Mirror:       mirror,
	}, batch.NewStore(batch.StoreConfig{
		MaxJobs:         cfg.Batch.MaxJobs,
		TerminalTTL:     cfg.Batch.TerminalTTL,
		CleanupInterval: cfg.Batch.CleanupInterval,
	}), pl, log)

	engineStop := make(chan struct{})
	go engine.Run(ctx, engineStop)
	defer close(engineStop)

	go runMetricsSnapshotLoop(ctx, mcs, browserPool, resultCache)

	healthChecker := health.NewChecker(health.CheckerConfig{
		Interval:     cfg.Health.Interval,
		Timeout:      cfg.Health.Timeout,
		TestURL:      cfg.Health.TestURL,
		TargetPort:   cfg.Health.TargetPort,
		StartupDelay: cfg.Health.StartupDelay,
	}, nil)
	healthStop := make(chan struct{})
	go healthChecker.Run(ctx, healthStop)
	defer close(healthStop)

	tiers := cfg.RateLimit.Tiers()
	limiterTiers := make(map[string]ratelimit.Config, len(tiers))
	for name, t := range tiers {
		limiterTiers[name] = ratelimit.Config{Rate: t.Rate, Per: t.Per, Burst: t.Burst}
	}
	limiters := ratelimit.NewRegistry(limiterTiers, func(userID string) string { return "free" })

	srv := newAdminServer(adminServerDeps{
		pipeline:    pl,
		engine:      engine,
		browserPool: browserPool,
		metrics:     mcs,
		cache:       resultCache,
		limiters:    limiters,
		logger:      log,
	})

	httpSrv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("admin server listening", "addr", cfg.AdminAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// runMetricsSnapshotLoop periodically feeds the browser pool's and result
// cache's latest stats into the collector so get_metrics reflects current
// state without either collaborator depending on internal/metrics directly.
func runMetricsSnapshotLoop(ctx context.Context, mcs *metrics.Collector, pool *browserpool.Pool, cache *resultcache.Cache) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poolStats := pool.Stats()
			mcs.UpdatePoolStats(map[string]any{
				"size":        poolStats.Size,
				"available":   poolStats.Available,
				"in_use":      poolStats.InUse,
				"utilization": poolStats.Utilization,
				"errors":      poolStats.Errors,
			})
			cacheStats := cache.Stats()
			mcs.UpdateCacheStats(map[string]any{
				"hits":   cacheStats.Hits,
				"misses": cacheStats.Misses,
				"size":   cacheStats.Size,
			})
		}
	}
}

func buildObjectStore(ctx context.Context, cfg config.StorageConfig) (objectstore.ObjectStore, error) {
	switch cfg.Type {
	case "gcs":
		return gcs.NewStore(ctx, cfg.GCSBucket)
	default:
		return fs.NewStore(cfg.FSDir)
	}
}

