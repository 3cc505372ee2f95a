// Package pipeline implements the screenshot capture pipeline (spec §4.8),
// the single place every other core component (throttle, caches, pools,
// collaborators) gets wired together into one operation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shotpool/shotpool/internal/apierrors"
	"github.com/shotpool/shotpool/internal/browser"
	"github.com/shotpool/shotpool/internal/browserpool"
	"github.com/shotpool/shotpool/internal/contentcache"
	"github.com/shotpool/shotpool/internal/metrics"
	"github.com/shotpool/shotpool/internal/resultcache"
	"github.com/shotpool/shotpool/internal/retry"
	"github.com/shotpool/shotpool/internal/signer"
	"github.com/shotpool/shotpool/internal/storage/objectstore"
	"github.com/shotpool/shotpool/internal/tabpool"
	"github.com/shotpool/shotpool/internal/throttle"
	"github.com/shotpool/shotpool/internal/urlrewrite"
)

// BlockFlags toggles resource-class blocking for faster, cheaper captures.
type BlockFlags struct {
	Fonts, Media, Analytics, ThirdParty, Ads, Social bool
}

// Config tunes navigation and output behavior.
type Config struct {
	NavTimeout      time.Duration
	DefaultWidth    int
	DefaultHeight   int
	UserAgent       string
	Block           BlockFlags
	ScreenshotDir   string
	UseTabPool      bool
	ComplexSiteHints []string // URL substrings that extend timeouts/enable extra waits

	ContentCacheEnabled         bool
	ContentCachePriorityDomains []string
	ContentCacheAllContentMode  bool
}

func (c Config) withDefaults() Config {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = 1280
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = 800
	}
	return c
}

// TabProvider is the subset of tabpool.Pool the pipeline needs.
type TabProvider interface {
	GetTab(ctx context.Context, slotIndex int, bctx browser.Context, width, height int) (browser.Page, *tabpool.Entry, error)
	ReleaseTab(ctx context.Context, e *tabpool.Entry, healthy bool)
}

// Watchdog is touched on every admission (spec §4.10's explicit wiring, per
// the SUPPLEMENTED FEATURES note).
type Watchdog interface {
	Touch()
}

// Pipeline wires together every collaborator needed to turn a capture
// request into a signed artifact URL.
type Pipeline struct {
	cfg Config

	throttle     *throttle.Throttle
	rewriter     urlrewrite.Rewriter
	resultCache  *resultcache.Cache
	contentCache *contentcache.Store
	browserPool  *browserpool.Pool
	tabPool      TabProvider
	signer       signer.Signer
	store        objectstore.ObjectStore
	metrics      *metrics.Collector
	watchdog     Watchdog

	retryCfg retry.RetryConfig
	breakers *retry.BreakerRegistry
}

// New assembles a Pipeline. tabPool/watchdog/breakers may be nil (tab pool
// disabled, no watchdog wired, circuit breaker consultation skipped).
func New(
	cfg Config,
	th *throttle.Throttle,
	rewriter urlrewrite.Rewriter,
	resultCache *resultcache.Cache,
	contentCache *contentcache.Store,
	browserPool *browserpool.Pool,
	tabPool TabProvider,
	sgn signer.Signer,
	store objectstore.ObjectStore,
	mcs *metrics.Collector,
	watchdog Watchdog,
	retryCfg retry.RetryConfig,
	breakers *retry.BreakerRegistry,
) *Pipeline {
	if retryCfg == (retry.RetryConfig{}) {
		retryCfg = retry.DefaultRetryConfig()
	}
	return &Pipeline{
		cfg: cfg.withDefaults(), throttle: th, rewriter: rewriter, resultCache: resultCache,
		contentCache: contentCache, browserPool: browserPool, tabPool: tabPool,
		signer: sgn, store: store, metrics: mcs, watchdog: watchdog,
		retryCfg: retryCfg, breakers: breakers,
	}
}

// requestDomain extracts the host the circuit breaker should key on,
// falling back to the raw URL if it doesn't parse.
func requestDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

var navStages = []struct {
	waitUntil string
	fraction  float64
}{
	{"commit", 0.4},
	{"domcontentloaded", 0.7},
	{"networkidle", 0.5},
	{"load", 0.9},
}

// Capture runs the full spec §4.8 flow and returns the final artifact URL.
func (p *Pipeline) Capture(ctx context.Context, rawURL string, width, height int, format string, useCache bool) (string, error) {
	if width <= 0 {
		width = p.cfg.DefaultWidth
	}
	if height <= 0 {
		height = p.cfg.DefaultHeight
	}

	var result string
	err := p.throttle.Execute(ctx, func(ctx context.Context) error {
		if p.watchdog != nil {
			p.watchdog.Touch()
		}

		normalized := p.rewriter.Transform(rawURL)

		if useCache {
			if cached, ok := p.resultCache.Get(rawURL, width, height, format); ok {
				if p.metrics != nil {
					p.metrics.IncrCacheHit()
				}
				result = cached
				return nil
			}
			if p.metrics != nil {
				p.metrics.IncrCacheMiss()
			}
		}

		artifact, err := p.captureOnce(ctx, normalized, width, height, format)
		if err != nil {
			return err
		}

		uploaded, err := p.upload(ctx, artifact, format)
		if err != nil {
			return err
		}

		if useCache {
			p.resultCache.Set(rawURL, width, height, format, uploaded)
			if p.metrics != nil {
				p.metrics.IncrCacheStore()
			}
		}
		result = uploaded
		return nil
	})
	if err != nil {
		if errors.Is(err, throttle.ErrQueueFull) {
			return "", apierrors.Wrap(apierrors.KindSystemOverloaded, err, "capture queue is full")
		}
		return "", err
	}
	return result, nil
}

func (p *Pipeline) upload(ctx context.Context, localPath, format string) (string, error) {
	key := fmt.Sprintf("%s.%s", uuid.NewString(), format)
	if err := p.store.Upload(ctx, localPath, key); err != nil {
		return "", apierrors.Wrap(apierrors.KindUpload, err, "upload artifact")
	}
	url, err := p.signer.Sign(key, 0, 0, format)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUpload, err, "sign artifact url")
	}
	return url, nil
}

func (p *Pipeline) isComplexSite(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, hint := range p.cfg.ComplexSiteHints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

func (p *Pipeline) captureOnce(ctx context.Context, normalizedURL string, width, height int, format string) (string, error) {
	domain := requestDomain(normalizedURL)
	var breaker *retry.CircuitBreaker
	if p.breakers != nil {
		breaker = p.breakers.Get(domain)
	}

	var slotIndex int
	var bctx browser.Context
	acquireErr := retry.Execute(ctx, p.retryCfg, breaker, domain, "acquire_context", func(ctx context.Context) error {
		handle, idx, err := p.browserPool.Acquire(ctx)
		if err != nil {
			return apierrors.Wrap(apierrors.KindPoolExhausted, err, "acquire browser slot")
		}
		c, err := handle.NewContext(ctx, browser.ContextOptions{UserAgent: p.cfg.UserAgent, Width: width, Height: height})
		if err != nil {
			p.browserPool.Release(ctx, idx, false)
			return apierrors.Wrap(apierrors.KindBrowser, err, "open browser context")
		}
		slotIndex, bctx = idx, c
		return nil
	})
	if acquireErr != nil {
		return "", acquireErr
	}

	healthy := true
	defer func() {
		if bctx != nil {
			_ = bctx.Close(ctx)
		}
		p.browserPool.Release(ctx, slotIndex, healthy)
	}()

	var page browser.Page
	var tabEntry *tabpool.Entry
	pageErr := retry.Execute(ctx, p.retryCfg, breaker, domain, "acquire_page", func(ctx context.Context) error {
		var pg browser.Page
		var entry *tabpool.Entry
		var err error
		if p.cfg.UseTabPool && p.tabPool != nil {
			pg, entry, err = p.tabPool.GetTab(ctx, slotIndex, bctx, width, height)
		}
		if pg == nil {
			pg, err = bctx.NewPage(ctx)
		}
		if err != nil {
			return apierrors.Wrap(apierrors.KindBrowser, err, "open page")
		}
		page, tabEntry = pg, entry
		return nil
	})
	if pageErr != nil {
		healthy = false
		return "", pageErr
	}
	defer func() {
		if tabEntry != nil {
			p.tabPool.ReleaseTab(ctx, tabEntry, healthy)
		} else {
			_ = page.Close(ctx)
		}
	}()

	if p.contentCache != nil {
		if err := page.SetRouteHandler(ctx, p.interceptRoute()); err != nil {
			healthy = false
			return "", apierrors.Wrap(apierrors.KindBrowser, err, "attach route interceptor")
		}
	}

	if err := page.SetViewport(ctx, width, height); err != nil {
		healthy = false
		return "", apierrors.Wrap(apierrors.KindBrowser, err, "set viewport")
	}
	if p.cfg.UserAgent != "" {
		if err := page.SetExtraHeaders(ctx, map[string]string{"User-Agent": p.cfg.UserAgent}); err != nil {
			healthy = false
			return "", apierrors.Wrap(apierrors.KindBrowser, err, "set user agent")
		}
	}

	navTimeout := p.cfg.NavTimeout
	if p.isComplexSite(normalizedURL) {
		navTimeout *= 2
	}

	navErr := retry.Execute(ctx, p.retryCfg, breaker, domain, "navigate", func(ctx context.Context) error {
		return p.navigateProgressive(ctx, page, normalizedURL, navTimeout)
	})
	if navErr != nil && ctx.Err() != nil {
		healthy = false
		return "", apierrors.Wrap(apierrors.KindNavigation, navErr, "navigate")
	}
	// best-effort: even on navErr != nil (retries exhausted or breaker open)
	// we still attempt the screenshot against whatever rendered.

	dest := filepath.Join(p.cfg.ScreenshotDir, uuid.NewString()+"."+format)
	if err := os.MkdirAll(p.cfg.ScreenshotDir, 0o755); err != nil {
		return "", apierrors.Wrap(apierrors.KindScreenshot, err, "prepare screenshot dir")
	}

	screenshotErr := retry.Execute(ctx, p.retryCfg, breaker, domain, "screenshot", func(ctx context.Context) error {
		return page.Screenshot(ctx, dest, format)
	})
	if screenshotErr != nil {
		healthy = false
		return "", apierrors.Wrap(apierrors.KindScreenshot, screenshotErr, "capture screenshot")
	}

	return dest, nil
}

func (p *Pipeline) navigateProgressive(ctx context.Context, page browser.Page, url string, total time.Duration) error {
	var lastErr error
	for _, stage := range navStages {
		timeout := time.Duration(float64(total) * stage.fraction)
		err := page.Navigate(ctx, url, browser.NavigateOptions{WaitUntil: stage.waitUntil, Timeout: timeout})
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// interceptRoute fulfills sub-resource requests from the content cache when
// eligible, falling through to the network otherwise (spec §4.5 flow).
func (p *Pipeline) interceptRoute() browser.RouteHandler {
	return func(req browser.RouteRequest) browser.RouteResponse {
		canonical := p.rewriter.Reverse(req.URL)
		eligible := contentcache.Eligible(p.cfg.ContentCacheEnabled, canonical, p.cfg.ContentCachePriorityDomains, p.cfg.ContentCacheAllContentMode, contentcache.ResourceType(req.ResourceType))
		if !eligible {
			return browser.RouteResponse{Action: browser.RouteContinue}
		}

		key := contentcache.Key(canonical)
		if data, headers, ok := p.contentCache.Get(key); ok {
			return browser.RouteResponse{Action: browser.RouteFulfill, Body: data, Headers: headers}
		}
		return browser.RouteResponse{Action: browser.RouteContinue}
	}
}
