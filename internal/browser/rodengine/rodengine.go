// Package rodengine adapts github.com/go-rod/rod to the internal/browser
// interfaces. This is the only package in the module allowed to import rod
// directly.
package rodengine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/shotpool/shotpool/internal/browser"
)

// Factory launches rod-backed browser handles.
type Factory struct{}

// New returns a Factory. It carries no state; every Launch call spawns an
// independent browser process.
func New() *Factory { return &Factory{} }

func (f *Factory) Launch(ctx context.Context, engine string, headless bool, args []string) (browser.Handle, error) {
	l := launcher.New().Headless(headless)
	for _, a := range args {
		l = l.Set(launcher.Flag(a))
	}
	if engine != "" {
		if _, err := os.Stat(engine); err == nil {
			l = l.Bin(engine)
		}
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &handle{browser: b, launcher: l}, nil
}

type handle struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (h *handle) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	b := h.browser.Context(ctx)
	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	return &browserContext{browser: incognito, opts: opts}, nil
}

func (h *handle) Healthy(ctx context.Context) bool {
	page, err := h.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return false
	}
	defer page.Close()
	return true
}

func (h *handle) Close(ctx context.Context) error {
	if err := h.browser.Context(ctx).Close(); err != nil {
		return err
	}
	h.launcher.Kill()
	return nil
}

type browserContext struct {
	browser *rod.Browser
	opts    browser.ContextOptions
}

func (c *browserContext) NewPage(ctx context.Context) (browser.Page, error) {
	p, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if c.opts.Width > 0 && c.opts.Height > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width: c.opts.Width, Height: c.opts.Height, DeviceScaleFactor: 1,
		}); err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	return &page{page: p}, nil
}

func (c *browserContext) Close(ctx context.Context) error {
	return c.browser.Context(ctx).Close()
}

type page struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *page) SetViewport(ctx context.Context, width, height int) error {
	return p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: width, Height: height, DeviceScaleFactor: 1,
	})
}

func (p *page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	pairs := make([]string, 0, len(headers)*2)
	for k, v := range headers {
		pairs = append(pairs, k, v)
	}
	_, err := p.page.Context(ctx).SetExtraHeaders(pairs)
	return err
}

func (p *page) SetRouteHandler(ctx context.Context, handler browser.RouteHandler) error {
	router := p.page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		resp := handler(browser.RouteRequest{
			URL:          h.Request.URL().String(),
			ResourceType: string(h.Request.Type()),
		})
		switch resp.Action {
		case browser.RouteAbort:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		case browser.RouteFulfill:
			for k, v := range resp.Headers {
				h.Response.SetHeader(k, v)
			}
			h.Response.Payload().Body = resp.Body
		default:
			if err := h.LoadResponse(rod.DefaultClient, true); err != nil {
				h.Response.Fail(proto.NetworkErrorReasonFailed)
			}
		}
	})
	go router.Run()
	p.router = router
	return nil
}

func (p *page) ClearRouteHandler(ctx context.Context) error {
	if p.router == nil {
		return nil
	}
	err := p.router.Stop()
	p.router = nil
	return err
}

func (p *page) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pg := p.page.Context(ctx).Timeout(timeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	switch opts.WaitUntil {
	case "commit":
		return nil
	case "domcontentloaded":
		return pg.WaitDOMStable(300*time.Millisecond, 0)
	case "networkidle":
		return pg.WaitIdle(2 * time.Second)
	default: // "load"
		return pg.WaitLoad()
	}
}

func (p *page) Screenshot(ctx context.Context, destPath string, format string) error {
	fmtProto := proto.PageCaptureScreenshotFormatPng
	if format == "jpeg" || format == "jpg" {
		fmtProto = proto.PageCaptureScreenshotFormatJpeg
	} else if format == "webp" {
		fmtProto = proto.PageCaptureScreenshotFormatWebp
	}
	data, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{Format: fmtProto})
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (p *page) Reset(ctx context.Context, timeout time.Duration) error {
	if err := p.ClearRouteHandler(ctx); err != nil {
		return err
	}
	return p.page.Context(ctx).Timeout(timeout).Navigate("about:blank")
}

func (p *page) Close(ctx context.Context) error {
	return p.page.Close()
}
