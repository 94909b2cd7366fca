// Package render turns post web pages into JPEG screenshots with a real
// browser. Interactive sign-in runs in a headful window that a human
// completes; capture runs headless against the saved session state.
package render

import (
	"context"
	"time"
)

// WaitState selects how long navigation waits before the page counts as
// loaded.
type WaitState string

const (
	// WaitLoad waits for the load event.
	WaitLoad WaitState = "load"
	// WaitNetworkIdle waits until the page stops issuing requests. Embed
	// widgets render asynchronously and need this.
	WaitNetworkIdle WaitState = "networkidle"
)

// Capture describes one screenshot to take.
type Capture struct {
	// URL of the page to render.
	URL string
	// Selector for the element to screenshot.
	Selector string
	// StyleCSS is injected after load to hide chrome around the post.
	StyleCSS string
	// Wait is the navigation wait state. Empty means WaitLoad.
	Wait WaitState
	// SettleDelay is an extra pause after load, for pages that reflow
	// after their load event.
	SettleDelay time.Duration
}

// Page is the slice of browser-page behavior a service's sign-in flow
// drives. The human does the typing; the flow just navigates and waits for
// evidence that sign-in finished.
type Page interface {
	Navigate(url string) error
	Click(selector string) error
	WaitForSelector(selector string, timeout time.Duration) error
	WaitForURL(pattern string, timeout time.Duration) error
}

// Session is an open headless capture context. Captures share one browser
// and session state; Close releases the browser resources.
type Session interface {
	Capture(ctx context.Context, c Capture) ([]byte, error)
	Close() error
}

// Renderer creates sign-in windows and capture sessions.
type Renderer interface {
	// SignIn opens a visible browser window for the named service, runs
	// flow against it, and persists the resulting session state on
	// success.
	SignIn(ctx context.Context, service string, flow func(Page) error) error

	// BeginCapture opens a headless session that reuses the service's
	// saved sign-in state, if any.
	BeginCapture(ctx context.Context, service string) (Session, error)

	// Close shuts the browser runtime down.
	Close() error
}
