package fetch

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"spiderd/internal/model"
	"spiderd/internal/retry"
)

// BrowserConfig configures the headless-browser client.
type BrowserConfig struct {
	// WebsocketURL is the externally managed browser's DevTools
	// websocket endpoint, e.g. ws://localhost:9222/devtools/browser/....
	// When empty, BrowserClient launches and manages a local headless
	// Chromium instance instead (the teacher's original behavior).
	WebsocketURL          string
	Timeout               time.Duration
	WaitForLoad           bool
	WaitForNetworkIdle    bool
	AdditionalWaitSeconds float64
}

// BrowserClient connects to a headless browser over a websocket
// DevTools endpoint, opens a fresh tab per request, and returns
// rendered content. The browser connection is lazy-initialized and
// single-instance; the underlying context is reused across tabs.
type BrowserClient struct {
	cfg     BrowserConfig
	browser *rod.Browser
	owned   *launcher.Launcher
}

// NewBrowserClient builds a BrowserClient. The underlying browser is
// not connected until the first Fetch call.
func NewBrowserClient(cfg BrowserConfig) *BrowserClient {
	return &BrowserClient{cfg: cfg}
}

func (c *BrowserClient) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	if c.browser != nil {
		return c.browser, nil
	}

	if c.cfg.WebsocketURL != "" {
		browser := rod.New().ControlURL(c.cfg.WebsocketURL).Context(ctx).Timeout(c.cfg.Timeout)
		if err := browser.Connect(); err != nil {
			return nil, retry.NewFetchError(err, 5*time.Second)
		}
		c.browser = browser
		return browser, nil
	}

	// No externally managed endpoint configured; fall back to launching
	// and owning a local headless Chromium instance.
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	u, err := l.Launch()
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	browser := rod.New().ControlURL(u).Context(ctx).Timeout(c.cfg.Timeout)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	c.browser = browser
	c.owned = l
	return browser, nil
}

// Fetch navigates to req.URL in a fresh tab, waits for the load event,
// optionally waits for network-idle/an additional quiescent delay,
// performs one scroll-to-bottom + scroll-to-top cycle, and returns the
// rendered content.
func (c *BrowserClient) Fetch(ctx context.Context, req model.HttpRequest) (*model.HttpResponse, error) {
	browser, err := c.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: req.URL})
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}
	defer func() { _ = page.Close() }()

	// Every fetch waits for the full load event here; there is no
	// domcontentloaded-only mode. WaitForLoad repeats this same wait.
	if err := page.WaitLoad(); err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	if c.cfg.WaitForLoad {
		if err := page.WaitLoad(); err != nil {
			return nil, retry.NewFetchError(err, 5*time.Second)
		}
	}
	if c.cfg.WaitForNetworkIdle {
		if err := page.WaitIdle(5 * time.Second); err != nil {
			return nil, retry.NewFetchError(err, 5*time.Second)
		}
	}
	if c.cfg.AdditionalWaitSeconds > 0 {
		time.Sleep(time.Duration(c.cfg.AdditionalWaitSeconds * float64(time.Second)))
	}

	// Scroll to bottom then back to top to trigger lazily loaded content.
	_ = page.Mouse.Scroll(0, 1e6, 1)
	time.Sleep(500 * time.Millisecond)
	_ = page.Mouse.Scroll(0, -1e6, 1)
	time.Sleep(500 * time.Millisecond)

	info, err := page.Info()
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	htmlStr, err := page.HTML()
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	return &model.HttpResponse{
		Content:    htmlStr,
		StatusCode: 200,
		Headers:    map[string]string{},
		FinalURL:   info.URL,
	}, nil
}

// Close closes the browser connection and, when this client launched a
// local Chromium, kills that process. Tabs are already closed by Fetch.
// The error from closing the browser is returned to the caller.
func (c *BrowserClient) Close() error {
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	if c.owned != nil {
		c.owned.Kill()
	}
	c.browser = nil
	c.owned = nil
	return err
}
