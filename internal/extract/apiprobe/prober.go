// Package apiprobe tries candidate JSON endpoints before any HTML parsing.
package apiprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/menu"
)

// Item list fields accepted as menu-shaped JSON, checked in order.
var listFields = []string{"items", "menu_items", "menuItems", "dishes"}

// Prober issues requests against an ordered endpoint list and accepts the
// first response that parses as menu-shaped JSON with at least one item.
type Prober struct {
	fetcher        menu.Fetcher
	endpoints      []string
	acceptLanguage string
	logger         *zap.Logger
}

// New wires a prober over the given fetcher and candidate endpoints.
func New(fetcher menu.Fetcher, endpoints []string, acceptLanguage string, logger *zap.Logger) *Prober {
	return &Prober{fetcher: fetcher, endpoints: endpoints, acceptLanguage: acceptLanguage, logger: logger}
}

// requestHeaders marks the probe as an API client. The language hint
// matters even for JSON: the backend localizes dish names server side.
func (p *Prober) requestHeaders() http.Header {
	headers := http.Header{"Accept": {"application/json"}}
	if p.acceptLanguage != "" {
		headers.Set("Accept-Language", p.acceptLanguage)
	}
	return headers
}

// Strategy identifies this prober in snapshots and metrics.
func (p *Prober) Strategy() menu.Strategy { return menu.StrategyAPI }

// Probe walks the endpoint list in order and returns the first non-empty
// candidate set. Endpoints that error, time out, or return non-menu-shaped
// or empty JSON are skipped. When every endpoint falls through, the last
// failure is returned alongside the empty result so the pipeline can log it;
// an all-empty-but-valid walk returns (nil, nil).
func (p *Prober) Probe(ctx context.Context) ([]menu.RawCandidate, error) {
	var lastErr error
	for _, endpoint := range p.endpoints {
		response, err := p.fetcher.Fetch(ctx, menu.FetchRequest{URL: endpoint, Headers: p.requestHeaders()})
		if err != nil {
			lastErr = &menu.NetworkError{URL: endpoint, Err: err}
			p.logger.Debug("api probe request failed", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		if response.StatusCode != http.StatusOK {
			lastErr = &menu.NetworkError{URL: endpoint, Err: fmt.Errorf("status %d", response.StatusCode)}
			p.logger.Debug("api probe bad status", zap.String("endpoint", endpoint), zap.Int("status", response.StatusCode))
			continue
		}
		candidates, err := decode(response.Body)
		if err != nil {
			lastErr = &menu.ParseError{Strategy: menu.StrategyAPI, Err: err}
			p.logger.Debug("api probe response not menu shaped", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		if len(candidates) > 0 {
			p.logger.Debug("api probe hit", zap.String("endpoint", endpoint), zap.Int("candidates", len(candidates)))
			return candidates, nil
		}
	}
	return nil, lastErr
}

type apiItem struct {
	Title       string          `json:"title"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Desc        string          `json:"desc"`
	Price       json.RawMessage `json:"price"`
}

func decode(body []byte) ([]menu.RawCandidate, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		var bare []apiItem
		if errBare := json.Unmarshal(body, &bare); errBare == nil {
			return convert(bare), nil
		}
		return nil, err
	}
	for _, field := range listFields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		var items []apiItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return convert(items), nil
	}
	return nil, errors.New("no recognizable item list field")
}

func convert(items []apiItem) []menu.RawCandidate {
	candidates := make([]menu.RawCandidate, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = item.Name
		}
		if title == "" {
			continue
		}
		description := item.Description
		if description == "" {
			description = item.Desc
		}
		candidates = append(candidates, menu.RawCandidate{
			Title:       title,
			Description: description,
			Price:       priceText(item.Price),
		})
	}
	return candidates
}

func priceText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}
