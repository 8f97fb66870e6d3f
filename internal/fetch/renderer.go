package fetch

import "context"

// RenderedPage is the outcome of loading a URL in a real browser.
type RenderedPage struct {
	URL  string
	HTML string
}

// Renderer loads a page through a headless browser, executing
// JavaScript challenges the plain HTTP client cannot pass.
type Renderer interface {
	Render(ctx context.Context, url string) (RenderedPage, error)
}
