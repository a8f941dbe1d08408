// Package normalize provides the text folding used for keyword matching and
// deduplication. Both Clean and Normalize are idempotent.
package normalize

import (
	"html"
	"regexp"
	"strings"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tag         = regexp.MustCompile(`<[^>]*>`)
)

// Decorative punctuation stripped before matching. Inner hyphens, commas and
// periods stay because titles and prices carry them.
var decorative = map[rune]bool{
	'*': true, '•': true, '·': true, '…': true,
	'"': true, '\'': true, '´': true, '`': true,
	'«': true, '»': true, '“': true, '”': true, '„': true,
	'‚': true, '‘': true, '’': true,
	'|': true, '#': true, '~': true, '_': true,
}

const edgePunct = "-–—:;,. "

// Clean collapses runs of whitespace into single spaces and trims the ends.
// Case and punctuation are preserved for display.
func Clean(s string) string {
	return collapse(s)
}

// Normalize folds text for matching: lower-cased, decorative punctuation
// removed, whitespace collapsed, edge punctuation trimmed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if decorative[r] {
			return -1
		}
		return r
	}, s)
	s = collapse(s)
	return strings.Trim(s, edgePunct)
}

// StripTags removes script/style blocks from raw HTML and replaces markup
// with line breaks, so the line-oriented strategies see one element per line.
// Entities are unescaped; line structure is preserved for the caller.
func StripTags(s string) string {
	s = scriptBlock.ReplaceAllString(s, " ")
	s = styleBlock.ReplaceAllString(s, " ")
	s = tag.ReplaceAllString(s, "\n")
	return html.UnescapeString(s)
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
