// Package browser abstracts the headless-browser engine so the pool, tab
// pool and pipeline never depend on a concrete automation library.
package browser

import (
	"context"
	"time"
)

// ContextOptions configures a new browsing context (the unit a page lives
// inside — roughly a browser "profile" with its own cookie jar).
type ContextOptions struct {
	UserAgent string
	Width     int
	Height    int
}

// RouteRequest is the inbound request a RouteHandler decides how to fulfill.
type RouteRequest struct {
	URL          string
	ResourceType string
}

// RouteAction is what a RouteHandler chose to do with an intercepted request.
type RouteAction int

const (
	// RouteContinue lets the request proceed to the network unmodified.
	RouteContinue RouteAction = iota
	// RouteAbort fails the request without hitting the network.
	RouteAbort
	// RouteFulfill answers the request with the handler-supplied body/headers.
	RouteFulfill
)

// RouteResponse is returned by a RouteHandler to tell the page how to
// resolve an intercepted request.
type RouteResponse struct {
	Action  RouteAction
	Body    []byte
	Headers map[string]string
}

// RouteHandler intercepts every sub-resource request a page issues.
type RouteHandler func(req RouteRequest) RouteResponse

// Factory launches browser processes.
type Factory interface {
	Launch(ctx context.Context, engine string, headless bool, args []string) (Handle, error)
}

// Handle is a running browser process.
type Handle interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	// Healthy performs a cheap liveness probe (e.g. opening and closing a
	// throwaway page) used by the pool's health checks.
	Healthy(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Context is an isolated browsing context (cookies/cache namespace).
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// NavigateOptions configures a single navigation attempt.
type NavigateOptions struct {
	WaitUntil string // "commit" | "domcontentloaded" | "networkidle" | "load"
	Timeout   time.Duration
}

// Page is a single browser tab.
type Page interface {
	SetViewport(ctx context.Context, width, height int) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	SetRouteHandler(ctx context.Context, handler RouteHandler) error
	ClearRouteHandler(ctx context.Context) error
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Screenshot(ctx context.Context, destPath string, format string) error
	// Reset navigates to a blank document and clears route handlers, used by
	// the tab pool to sanitize a tab before returning it to the available list.
	Reset(ctx context.Context, timeout time.Duration) error
	Close(ctx context.Context) error
}
