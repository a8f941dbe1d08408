// Package textblock parses the site's line-oriented plain-text menu layout.
package textblock

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/normalize"
)

// Delimiters separating title from description or price within a line,
// most common variant first.
var delimiters = []string{" – ", " — ", " - "}

// priceToken accepts "12.50", "12,50" and "CHF 12.50"; bare integers only
// with a CHF prefix, so counts like "2 Gänge" never read as prices.
var priceToken = regexp.MustCompile(`^(?:CHF\s*\d{1,3}(?:[.,]\d{2})?|\d{1,3}[.,]\d{2})$`)

const (
	minTitleRunes = 3
	maxTitleRunes = 100
)

// Extractor reads blank-line separated groups: the first line carries the
// title with an optional delimited price suffix, later lines hold the
// description or a standalone price.
type Extractor struct{}

// New returns the structured text extractor.
func New() *Extractor { return &Extractor{} }

// Strategy identifies this extractor in snapshots and metrics.
func (e *Extractor) Strategy() menu.Strategy { return menu.StrategyTextBlock }

// Extract parses stripped page text into raw candidates. Groups without a
// price token are not part of the known layout and are skipped; when no
// group matches, the result is empty with a nil error so the pipeline moves
// on to the DOM scan.
func (e *Extractor) Extract(html string) ([]menu.RawCandidate, error) {
	groups := groupLines(normalize.StripTags(html))
	candidates := make([]menu.RawCandidate, 0, len(groups))
	for _, group := range groups {
		if candidate, ok := parseGroup(group); ok {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates, nil
}

// groupLines splits text into groups of consecutive non-blank lines.
func groupLines(text string) [][]string {
	var groups [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		line = normalize.Clean(line)
		if line == "" {
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func parseGroup(lines []string) (menu.RawCandidate, bool) {
	title, description, price := splitTitleLine(lines[0])
	if !plausibleTitle(title) {
		return menu.RawCandidate{}, false
	}

	var descParts []string
	if description != "" {
		descParts = append(descParts, description)
	}
	for _, line := range lines[1:] {
		if price == "" && priceToken.MatchString(line) {
			price = line
			continue
		}
		descParts = append(descParts, line)
	}
	if price == "" {
		return menu.RawCandidate{}, false
	}
	return menu.RawCandidate{
		Title:       title,
		Description: strings.Join(descParts, " "),
		Price:       price,
	}, true
}

// splitTitleLine breaks "Title – description – price" shaped lines apart.
// A delimited tail only counts as price when it matches the price token.
func splitTitleLine(line string) (title, description, price string) {
	for _, delimiter := range delimiters {
		if !strings.Contains(line, delimiter) {
			continue
		}
		parts := strings.Split(line, delimiter)
		title = strings.TrimSpace(parts[0])
		tail := strings.TrimSpace(parts[len(parts)-1])
		if priceToken.MatchString(tail) {
			price = tail
			description = strings.TrimSpace(strings.Join(parts[1:len(parts)-1], " "))
		} else {
			description = strings.TrimSpace(strings.Join(parts[1:], " "))
		}
		return title, description, price
	}
	return line, "", ""
}

func plausibleTitle(title string) bool {
	length := utf8.RuneCountInString(title)
	return length >= minTitleRunes && length <= maxTitleRunes
}
