// Package collyfetcher implements menu.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher runs single-page GETs through a Colly collector. The menu page
// is one document, so every visit is independent: no frontier, no URL
// dedup across calls.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, request menu.FetchRequest) (menu.FetchResponse, error) {
	rec := &capture{start: time.Now()}
	collector := f.newCollector()
	rec.bind(collector, request)

	if err := visit(ctx, collector, request.URL); err != nil {
		return menu.FetchResponse{}, err
	}
	if rec.err != nil {
		return menu.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, rec.err)
	}
	metrics.ObserveFetch("static", rec.response.Duration)
	return rec.response, nil
}

// newCollector clones the base collector so per-visit callbacks never
// accumulate on it.
func (f *Fetcher) newCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	base := f.transport
	if base == nil {
		base = newHTTPTransport()
	}
	if f.cfg.RespectRobots {
		// Colly fails the whole visit when the robots.txt probe errors,
		// so transient probe failures get retried and eventually waved
		// through instead.
		collector.WithTransport(&robotsProbeTransport{base: base})
	} else {
		collector.WithTransport(base)
	}
	return collector
}

// visit runs the collector in a goroutine so a canceled context can
// abandon a hung visit. The goroutine finishes on its own once the
// request timeout fires.
func visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

// capture accumulates what one visit's callbacks observe. The collector
// is synchronous, so no locking is needed.
type capture struct {
	start    time.Time
	response menu.FetchResponse
	err      error
}

func (c *capture) bind(hooks collectorHooks, request menu.FetchRequest) {
	hooks.OnRequest(func(r *colly.Request) {
		applyHeaders(r, request.Headers)
	})

	hooks.OnResponse(func(r *colly.Response) {
		c.response = menu.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(c.start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		c.err = err
	})
}

func applyHeaders(r *colly.Request, headers http.Header) {
	for key, values := range headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// newHTTPTransport sizes the connection pool for a watcher that talks to
// a single host.
func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          8,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}
