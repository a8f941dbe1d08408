// Package domscan collects candidate item elements by applying prioritized
// CSS selectors against the parsed page.
package domscan

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/normalize"
)

// Config carries the selector lists, most-specific first. The lists are
// tuned to the source site and overridable through configuration.
type Config struct {
	Selectors      []string
	TitleSelector  string
	DescSelector   string
	PriceSelector  string
	SkipContainers []string
}

// DefaultConfig returns the selector sets for the source site's markup.
func DefaultConfig() Config {
	return Config{
		Selectors:      []string{".menu-item", ".dish", ".meal", ".card", ".product"},
		TitleSelector:  "h3, h4, h5, .name, .title, strong, b",
		DescSelector:   ".description, .desc, .ingredients, p",
		PriceSelector:  ".price, [class*=price], [data-price]",
		SkipContainers: []string{"nav", "footer", "header", "aside"},
	}
}

var priceText = regexp.MustCompile(`CHF\s*\d{1,3}(?:[.,]\d{2})?|\d{1,3}[.,]\d{2}`)

const (
	minElementRunes = 5
	maxElementRunes = 400
)

// Extractor walks the selector list and keeps the results of the first
// selector that yields at least one plausible element.
type Extractor struct {
	cfg  Config
	skip string
}

// New builds an extractor; the skip containers collapse into one selector.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg, skip: strings.Join(cfg.SkipContainers, ", ")}
}

// Strategy identifies this extractor in snapshots and metrics.
func (e *Extractor) Strategy() menu.Strategy { return menu.StrategyDOMScan }

// Extract parses the HTML once and scans selectors most-specific first,
// stopping at the first selector with plausible matches. Elements inside
// navigation, footer or other skip containers never count.
func (e *Extractor) Extract(html string) ([]menu.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &menu.ParseError{Strategy: menu.StrategyDOMScan, Err: err}
	}
	for _, selector := range e.cfg.Selectors {
		if candidates := e.scan(doc, selector); len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

func (e *Extractor) scan(doc *goquery.Document, selector string) []menu.RawCandidate {
	var candidates []menu.RawCandidate
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if e.skip != "" && sel.Closest(e.skip).Length() > 0 {
			return
		}
		text := normalize.Clean(sel.Text())
		if !plausibleElement(text) {
			return
		}
		candidates = append(candidates, e.candidate(sel, text))
	})
	return candidates
}

// candidate pulls title, description and price from configured child
// selectors. Elements without a recognizable title child degrade to a text
// blob with the price split off, which the classifier still understands.
func (e *Extractor) candidate(sel *goquery.Selection, text string) menu.RawCandidate {
	title := normalize.Clean(sel.Find(e.cfg.TitleSelector).First().Text())
	if title == "" {
		return blobCandidate(text)
	}
	return menu.RawCandidate{
		Title:       title,
		Description: normalize.Clean(sel.Find(e.cfg.DescSelector).First().Text()),
		Price:       e.price(sel, text),
	}
}

func (e *Extractor) price(sel *goquery.Selection, text string) string {
	priceSel := sel.Find(e.cfg.PriceSelector).First()
	if priceSel.Length() > 0 {
		if value, ok := priceSel.Attr("data-price"); ok && normalize.Clean(value) != "" {
			return normalize.Clean(value)
		}
		if value := normalize.Clean(priceSel.Text()); value != "" {
			return value
		}
	}
	return priceText.FindString(text)
}

func blobCandidate(text string) menu.RawCandidate {
	price := priceText.FindString(text)
	title := text
	if price != "" {
		title = normalize.Clean(strings.Replace(text, price, "", 1))
		title = strings.Trim(title, "-– ")
	}
	return menu.RawCandidate{Title: title, Price: price}
}

func plausibleElement(text string) bool {
	length := utf8.RuneCountInString(text)
	return length >= minElementRunes && length <= maxElementRunes
}
