// Package pattern is the last-resort regex extraction over raw page text.
// It is explicitly lossy and returns whatever it can find.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/normalize"
)

var (
	h3Title   = regexp.MustCompile(`(?i)<h3[^>]*>([^<]+)</h3>`)
	chfPrice  = regexp.MustCompile(`CHF\s*\d{1,3}(?:[.,]\d{1,2})?`)
	barePrice = regexp.MustCompile(`\b\d{1,2}[.,]\d{2}\b`)
	dateText  = regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{2,4}\b`)
)

// Window of raw HTML scanned after a heading for a nearby price.
const priceWindow = 250

const (
	minTitleRunes = 3
	maxTitleRunes = 80
)

// Config bounds how a bare decimal is accepted as a price. Numbers outside
// the plausible lunch range (years, times, phone fragments) are noise.
type Config struct {
	MinPrice float64
	MaxPrice float64
}

// DefaultConfig matches the source site's price range.
func DefaultConfig() Config {
	return Config{MinPrice: 5, MaxPrice: 50}
}

// Extractor applies the menu-line patterns. Heading captures run first;
// when no heading carries an item the line scan takes over.
type Extractor struct {
	cfg Config
}

// New returns the pattern extractor.
func New(cfg Config) *Extractor { return &Extractor{cfg: cfg} }

// Strategy identifies this extractor in snapshots and metrics.
func (e *Extractor) Strategy() menu.Strategy { return menu.StrategyPattern }

// Extract never fails: partial results are acceptable here.
func (e *Extractor) Extract(html string) ([]menu.RawCandidate, error) {
	candidates := e.fromHeadings(html)
	if len(candidates) == 0 {
		candidates = e.fromLines(html)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates, nil
}

// fromHeadings captures h3 texts and pairs each with the first CHF price in
// the markup window that follows it.
func (e *Extractor) fromHeadings(html string) []menu.RawCandidate {
	matches := h3Title.FindAllStringSubmatchIndex(html, -1)
	candidates := make([]menu.RawCandidate, 0, len(matches))
	for _, match := range matches {
		title := normalize.Clean(normalize.StripTags(html[match[2]:match[3]]))
		if !plausibleTitle(title) {
			continue
		}
		end := match[1]
		window := html[end:min(end+priceWindow, len(html))]
		candidates = append(candidates, menu.RawCandidate{
			Title: title,
			Price: chfPrice.FindString(window),
		})
	}
	return candidates
}

// fromLines scans stripped text line by line for CHF-tagged or bounded bare
// prices and treats the text before the price as the title.
func (e *Extractor) fromLines(html string) []menu.RawCandidate {
	var candidates []menu.RawCandidate
	for _, line := range strings.Split(normalize.StripTags(html), "\n") {
		line = normalize.Clean(line)
		if line == "" {
			continue
		}
		if candidate, ok := e.lineCandidate(line); ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

func (e *Extractor) lineCandidate(line string) (menu.RawCandidate, bool) {
	if loc := chfPrice.FindStringIndex(line); loc != nil {
		return e.titled(line[:loc[0]], line[loc[0]:loc[1]])
	}
	if loc := barePrice.FindStringIndex(line); loc != nil {
		price := line[loc[0]:loc[1]]
		if value, err := strconv.ParseFloat(strings.ReplaceAll(price, ",", "."), 64); err == nil &&
			value >= e.cfg.MinPrice && value <= e.cfg.MaxPrice {
			return e.titled(line[:loc[0]], price)
		}
	}
	return menu.RawCandidate{}, false
}

func (e *Extractor) titled(rawTitle, price string) (menu.RawCandidate, bool) {
	title := strings.Trim(normalize.Clean(rawTitle), "-–—: ")
	if !plausibleTitle(title) {
		return menu.RawCandidate{}, false
	}
	return menu.RawCandidate{Title: title, Price: price}, true
}

// Date returns the first date-shaped token (25.08.2026) in the page, used
// for snapshot display metadata.
func Date(html string) string {
	return dateText.FindString(html)
}

func plausibleTitle(title string) bool {
	length := utf8.RuneCountInString(title)
	if length < minTitleRunes || length > maxTitleRunes {
		return false
	}
	return strings.ContainsFunc(title, unicode.IsLetter)
}
