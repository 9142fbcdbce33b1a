package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultSettleTime is how long the renderer waits after the load event
// for client-side rendering to finish.
const DefaultSettleTime = 500 * time.Millisecond

// Renderer loads pages in headless Chrome.
type Renderer struct {
	timeout    time.Duration
	settleTime time.Duration
	userAgent  string
	execPath   string
	logger     *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRenderTimeout bounds one page render.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSettleTime sets the wait after the load event.
func WithSettleTime(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d >= 0 {
			r.settleTime = d
		}
	}
}

// WithExecPath sets the Chrome binary. Empty means auto-detect.
func WithExecPath(path string) RendererOption {
	return func(r *Renderer) {
		r.execPath = path
	}
}

// WithRendererUserAgent sets the browser User-Agent.
func WithRendererUserAgent(ua string) RendererOption {
	return func(r *Renderer) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithRendererLogger sets the logger.
func WithRendererLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer returns a Renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		timeout:    DefaultTimeout,
		settleTime: DefaultSettleTime,
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// allocatorOptions returns the Chrome flags used for every render.
func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(r.userAgent),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	return opts
}

// Load implements Loader. Local paths are opened through file:// URLs.
func (r *Renderer) Load(ctx context.Context, target string) (*Page, error) {
	pageURL := target
	if !IsRemote(target) {
		page, err := NewFetcher().readFile(target)
		if err != nil {
			return nil, err
		}
		pageURL = page.URL
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		r.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()

	var markup, location string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.settleTime),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	if location == "" {
		location = pageURL
	}

	r.logger.Debug("page rendered", "url", location, "bytes", len(markup))
	return &Page{
		URL:         NormalizeURL(location),
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(markup),
	}, nil
}
