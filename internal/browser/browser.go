package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/dcabrera/revolico-scraper/internal/fetch"
	"github.com/dcabrera/revolico-scraper/internal/session"
)

// Browser drives a real Chromium instance for pages the plain HTTP
// client cannot pass, JavaScript challenges above all. It implements
// fetch.Renderer.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        45 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		TimezoneID:     "America/Havana",
		Locale:         "es-ES",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
			"DNT":             "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Render loads a URL, waits out any Cloudflare interstitial, mimics a
// human skim of the page and returns the final HTML.
func (b *Browser) Render(ctx context.Context, url string) (fetch.RenderedPage, error) {
	page, err := b.NewPage()
	if err != nil {
		return fetch.RenderedPage{}, err
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	}); err != nil {
		return fetch.RenderedPage{}, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := b.waitOutChallenge(ctx, page); err != nil {
		return fetch.RenderedPage{}, err
	}

	b.humanize(page)

	if err := b.reloadOnErrorPage(ctx, page, url); err != nil {
		return fetch.RenderedPage{}, err
	}

	content, err := page.Content()
	if err != nil {
		return fetch.RenderedPage{}, fmt.Errorf("failed to read page content: %w", err)
	}

	finalURL := page.URL()
	if finalURL == "" {
		finalURL = url
	}

	return fetch.RenderedPage{URL: finalURL, HTML: content}, nil
}

// waitOutChallenge polls until the Cloudflare interstitial clears. The
// interstitial resolves itself once the browser passes the JavaScript
// check, usually within a few seconds.
func (b *Browser) waitOutChallenge(ctx context.Context, page playwright.Page) error {
	deadline := time.Now().Add(b.opts.Timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		title, err := page.Title()
		if err != nil {
			return fmt.Errorf("failed to get page title: %w", err)
		}

		if !challengeTitle(title) {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("challenge did not clear within %s", b.opts.Timeout)
		}

		b.logger.Debug("waiting for challenge to clear", "title", title)
		time.Sleep(2 * time.Second)
	}
}

func challengeTitle(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "just a moment") ||
		strings.Contains(t, "checking your browser") ||
		strings.Contains(t, "attention required")
}

// reloadOnErrorPage retries once when Revolico serves its client-side
// error screen, which a scroll-and-reload usually clears.
func (b *Browser) reloadOnErrorPage(ctx context.Context, page playwright.Page, url string) error {
	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to read page content: %w", err)
	}

	if !strings.Contains(content, "Ha ocurrido un error") {
		return nil
	}

	b.logger.Warn("error page detected, reloading", "url", url)
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to reload %s: %w", url, err)
	}

	page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	time.Sleep(2 * time.Second)
	page.Evaluate(`window.scrollTo(0, 0)`)

	return nil
}

// humanize moves the mouse and scrolls the way a person skimming a
// listing would.
func (b *Browser) humanize(page playwright.Page) {
	for i := 0; i < 3; i++ {
		x := float64(100 + rand.Intn(600))
		y := float64(100 + rand.Intn(400))
		page.Mouse().Move(x, y)
		time.Sleep(time.Millisecond * time.Duration(200+rand.Intn(300)))
	}

	page.Evaluate(`window.scrollBy(0, Math.random() * 300)`)
	time.Sleep(time.Second)
}

// ImportCookies seeds the browser context with a previously earned
// session.
func (b *Browser) ImportCookies(cookies []session.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			Secure:   playwright.Bool(c.Secure),
			HttpOnly: playwright.Bool(c.HTTPOnly),
		}
		if !c.Expires.IsZero() {
			cookie.Expires = playwright.Float(float64(c.Expires.Unix()))
		}
		converted = append(converted, cookie)
	}

	if err := b.context.AddCookies(converted); err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	return nil
}

// ExportCookies returns the context's current cookies so the HTTP
// engine can reuse a session the browser earned.
func (b *Browser) ExportCookies() ([]session.Cookie, error) {
	raw, err := b.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}

	now := time.Now()
	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SavedAt:  now,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}
