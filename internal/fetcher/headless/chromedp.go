// Package headless renders the menu page in a real browser for site
// variants that assemble their DOM with JavaScript.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/metrics"
)

const (
	defaultNavTimeout = 30 * time.Second

	// menuSettleTimeout bounds the wait for the menu container after the
	// document is ready. A page without one still renders; extraction
	// decides what to do with it.
	menuSettleTimeout = 3 * time.Second

	// renderGrace is the fallback settle pause when no wait selector is
	// configured.
	renderGrace = 400 * time.Millisecond
)

// Config controls the browser fetcher.
type Config struct {
	// MaxParallel caps concurrent browser tabs; 0 means no cap.
	MaxParallel int
	UserAgent   string
	// WaitSelector is a CSS selector the fetcher waits for after
	// navigation so client-side rendering can fill the menu first.
	WaitSelector      string
	NavigationTimeout time.Duration
}

// Fetcher implements menu.Fetcher with chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	sessions    chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a browser fetcher. The browser process itself is
// launched lazily on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	var sessions chan struct{}
	if cfg.MaxParallel > 0 {
		sessions = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		sessions:    sessions,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the allocator down, ending the browser process.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch renders the page and returns the post-JavaScript DOM.
func (f *Fetcher) Fetch(ctx context.Context, request menu.FetchRequest) (menu.FetchResponse, error) {
	if err := f.reserve(ctx); err != nil {
		return menu.FetchResponse{}, err
	}
	defer f.free()

	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	tabCtx, cancelNav := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancelNav()

	doc := &docResponse{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	start := time.Now()
	if err := chromedp.Run(tabCtx,
		f.sessionSetup(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return menu.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	f.settle(tabCtx)

	var html, finalURL string
	if err := chromedp.Run(tabCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return menu.FetchResponse{}, fmt.Errorf("capture %s: %w", request.URL, err)
	}

	duration := time.Since(start)
	metrics.ObserveFetch("headless", duration)

	status, headers, respURL := doc.result(request.URL, finalURL)
	return menu.FetchResponse{
		URL:          respURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     duration,
		UsedHeadless: true,
	}, nil
}

// settle waits for the configured menu selector, or pauses briefly when
// none is set. The selector never failing to appear is not an error; the
// page may simply carry no menu today.
func (f *Fetcher) settle(tabCtx context.Context) {
	if f.cfg.WaitSelector == "" {
		_ = chromedp.Run(tabCtx, chromedp.Sleep(renderGrace))
		return
	}
	settleCtx, cancel := context.WithTimeout(tabCtx, menuSettleTimeout)
	defer cancel()
	_ = chromedp.Run(settleCtx, chromedp.WaitReady(f.cfg.WaitSelector, chromedp.ByQuery))
}

func (f *Fetcher) sessionSetup(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network events: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("override user-agent: %w", err)
			}
		}
		if len(headers) == 0 {
			return nil
		}
		extra := network.Headers{}
		for key, values := range headers {
			switch len(values) {
			case 0:
			case 1:
				extra[key] = values[0]
			default:
				extra[key] = append([]string(nil), values...)
			}
		}
		if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) reserve(ctx context.Context) error {
	if f.sessions == nil {
		return nil
	}
	select {
	case f.sessions <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for browser slot: %w", ctx.Err())
	}
}

// free releases the slot taken by reserve. Callers pair them strictly.
func (f *Fetcher) free() {
	if f.sessions == nil {
		return
	}
	<-f.sessions
}

// docResponse captures status, headers, and URL of the main document
// response from CDP network events.
type docResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func (d *docResponse) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	// The map is replaced wholesale, never mutated, so result can hand it
	// out without copying.
	d.headers = flattenHeaders(resp.Response.Headers)
	d.url = resp.Response.URL
	d.mu.Unlock()
}

// result applies fallbacks: the browser's final location, then the request
// URL; a render without a captured document event reads as 200.
func (d *docResponse) result(requestURL, finalURL string) (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	headers := d.headers
	if headers == nil {
		headers = http.Header{}
	}
	url := d.url
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func flattenHeaders(raw network.Headers) http.Header {
	h := http.Header{}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			h.Add(key, v)
		case []any:
			for _, entry := range v {
				h.Add(key, fmt.Sprint(entry))
			}
		default:
			h.Add(key, fmt.Sprint(v))
		}
	}
	return h
}
