package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"favescreen/pkg/config"
	"favescreen/pkg/errors"
	"favescreen/pkg/logger"
)

// Browser is the playwright-backed Renderer.
type Browser struct {
	pw       *playwright.Playwright
	cfg      config.RenderConfig
	stateDir string
	logger   logger.Logger
}

// Install downloads the browser binaries playwright drives. Safe to call on
// every start; it is a no-op when the install is current.
func Install() error {
	return playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	})
}

// NewBrowser starts the playwright runtime. Session state files are kept
// under stateDir, one per service.
func NewBrowser(cfg config.RenderConfig, stateDir string, log logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	return &Browser{
		pw:       pw,
		cfg:      cfg,
		stateDir: stateDir,
		logger:   log,
	}, nil
}

// statePath returns where a service's session state is stored.
func (b *Browser) statePath(service string) string {
	return filepath.Join(b.stateDir, service+".json")
}

// SignIn opens a headful window and runs the service's sign-in flow in it.
// The flow blocks until the human finishes signing in; the session cookies
// and storage are then saved for headless reuse.
func (b *Browser) SignIn(ctx context.Context, service string, flow func(Page) error) error {
	b.logger.InfoWithFields("opening sign-in window", map[string]interface{}{
		"service": service,
	})

	browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	opts := playwright.BrowserNewContextOptions{}
	if _, err := os.Stat(b.statePath(service)); err == nil {
		opts.StorageStatePath = playwright.String(b.statePath(service))
	}

	brContext, err := browser.NewContext(opts)
	if err != nil {
		return fmt.Errorf("could not create browser context: %w", err)
	}
	defer brContext.Close()

	page, err := brContext.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}

	if err := flow(&pwPage{page: page}); err != nil {
		return fmt.Errorf("sign-in flow failed: %w", err)
	}

	if _, err := brContext.StorageState(b.statePath(service)); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	b.logger.InfoWithFields("sign-in complete, session state saved", map[string]interface{}{
		"service": service,
	})
	return nil
}

// BeginCapture launches a headless browser with the service's saved state
// and the configured capture viewport.
func (b *Browser) BeginCapture(ctx context.Context, service string) (Session, error) {
	browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.cfg.ViewportWidth,
			Height: b.cfg.ViewportHeight,
		},
		DeviceScaleFactor: playwright.Float(b.cfg.DeviceScaleFactor),
	}
	if _, err := os.Stat(b.statePath(service)); err == nil {
		opts.StorageStatePath = playwright.String(b.statePath(service))
	}

	brContext, err := browser.NewContext(opts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	return &pwSession{
		browser: browser,
		context: brContext,
		cfg:     b.cfg,
		logger:  b.logger,
	}, nil
}

// Close stops the playwright runtime.
func (b *Browser) Close() error {
	return b.pw.Stop()
}

// pwSession implements Session over one headless browser context.
type pwSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	cfg     config.RenderConfig
	logger  logger.Logger
}

// Capture renders the page and screenshots the selected element as JPEG.
func (s *pwSession) Capture(ctx context.Context, c Capture) ([]byte, error) {
	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	waitUntil := playwright.WaitUntilStateLoad
	if c.Wait == WaitNetworkIdle {
		waitUntil = playwright.WaitUntilStateNetworkidle
	}

	if _, err := page.Goto(c.URL, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return nil, fmt.Errorf("could not load %s: %w", c.URL, err)
	}

	if c.StyleCSS != "" {
		if _, err := page.AddStyleTag(playwright.PageAddStyleTagOptions{
			Content: playwright.String(c.StyleCSS),
		}); err != nil {
			return nil, fmt.Errorf("could not inject style: %w", err)
		}
	}

	if c.SettleDelay > 0 {
		time.Sleep(c.SettleDelay)
	}

	element, err := page.WaitForSelector(c.Selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(30000),
	})
	if err != nil || element == nil {
		s.logger.WarnWithFields("screenshot selector did not match", map[string]interface{}{
			"url":      c.URL,
			"selector": c.Selector,
		})
		return nil, errors.ErrSelectorNotFound
	}

	data, err := element.Screenshot(playwright.ElementHandleScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(s.cfg.ScreenshotQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	return data, nil
}

// Close releases the session's browser.
func (s *pwSession) Close() error {
	if err := s.context.Close(); err != nil {
		return err
	}
	return s.browser.Close()
}

// pwPage adapts playwright.Page to the Page interface.
type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Navigate(url string) error {
	_, err := p.page.Goto(url)
	return err
}

func (p *pwPage) Click(selector string) error {
	return p.page.Click(selector)
}

func (p *pwPage) WaitForSelector(selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (p *pwPage) WaitForURL(pattern string, timeout time.Duration) error {
	return p.page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}
