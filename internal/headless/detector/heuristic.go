// Package detector decides when a static fetch must be retried with a
// headless browser.
package detector

import (
	"bytes"

	"github.com/lunchbot/menuwatch/internal/menu"
)

// Heuristic flags responses whose HTML carries too little visible text
// to hold a day's menu. The restaurant publishes through a
// client-rendered app, so a plain GET often returns a bootstrap shell
// with the dishes nowhere in the markup.
type Heuristic struct {
	// MinVisibleText is the smallest amount of text, in bytes, outside
	// script and style blocks that counts as real page content.
	MinVisibleText int
}

// NewHeuristic creates a detector. A zero threshold falls back to 600
// bytes, roughly three dishes with descriptions.
func NewHeuristic(minVisibleText int) *Heuristic {
	if minVisibleText == 0 {
		minVisibleText = 600
	}
	return &Heuristic{MinVisibleText: minVisibleText}
}

// shellMarkers appear in the mount points of common frontend frameworks.
// Their presence alone is not conclusive, a rendered page keeps them too,
// but combined with a thin body they are.
var shellMarkers = [][]byte{
	[]byte("<app-root"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("__next"),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldRender reports whether the page must be re-fetched with a
// browser before extraction is worth attempting.
func (h *Heuristic) ShouldRender(resp menu.FetchResponse) bool {
	if resp.StatusCode != 200 {
		return false
	}
	if resp.UsedHeadless {
		return false
	}
	if len(resp.Body) == 0 {
		return true
	}
	if visibleText(resp.Body) >= h.MinVisibleText {
		return false
	}
	lower := bytes.ToLower(resp.Body)
	for _, marker := range shellMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	// Thin but markerless pages still render: a shell served by an
	// unfamiliar framework looks exactly like this.
	return true
}

// visibleText counts the bytes a browser would paint: everything outside
// tags, script and style blocks, and runs of whitespace.
func visibleText(body []byte) int {
	lower := bytes.ToLower(body)
	count := 0
	i := 0
	for i < len(lower) {
		if lower[i] == '<' {
			if skip, ok := cutElement(lower[i:], "script"); ok {
				i += skip
				continue
			}
			if skip, ok := cutElement(lower[i:], "style"); ok {
				i += skip
				continue
			}
			end := bytes.IndexByte(lower[i:], '>')
			if end == -1 {
				return count
			}
			i += end + 1
			continue
		}
		switch lower[i] {
		case ' ', '\t', '\n', '\r':
		default:
			count++
		}
		i++
	}
	return count
}

// cutElement reports how many bytes to skip when lower opens with the
// named element, including its content through the closing tag. An
// unterminated block swallows the rest of the document.
func cutElement(lower []byte, name string) (int, bool) {
	open := []byte("<" + name)
	if !bytes.HasPrefix(lower, open) {
		return 0, false
	}
	if len(lower) > len(open) {
		switch lower[len(open)] {
		case '>', ' ', '\t', '\n', '\r', '/':
		default:
			// "<scripted>" is not "<script>".
			return 0, false
		}
	}
	at := bytes.Index(lower, []byte("</"+name))
	if at == -1 {
		return len(lower), true
	}
	end := bytes.IndexByte(lower[at:], '>')
	if end == -1 {
		return len(lower), true
	}
	return at + end + 1, true
}
