// Package classify maps item text onto menu categories using ordered
// keyword tables.
package classify

import (
	"strings"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/normalize"
)

// Rules holds the priority-ordered keyword sets. The lists are data, not
// code: deployments override them through configuration when the source
// site changes its wording.
type Rules struct {
	Exclude []string
	Vegi    []string
	Hit     []string
	// Headers are bare section labels ("Menu", "Vegi") the site renders
	// above item blocks; an exact match is never an item itself.
	Headers []string
}

// DefaultRules returns the keyword tables tuned to the source site.
func DefaultRules() Rules {
	return Rules{
		Exclude: []string{
			"frühstück", "breakfast", "dessert",
			"öffnungszeiten", "kontakt", "ihre meinung", "wir machen",
			"hot & delicious", "kaffee, tee", "compass group", "jobs",
			"impressum", "datenschutz", "copyright", "cookies",
			"feedback", "umfrage",
		},
		Vegi:    []string{"vegi", "vegetarisch", "vegetarian", "vegan"},
		Hit:     []string{"hit", "special", "daily"},
		Headers: []string{"menu", "menü", "vegi", "hit", "frühstück", "tagesmenü"},
	}
}

// Classifier applies the rule tables to normalized item text.
type Classifier struct {
	exclude []string
	vegi    []string
	hit     []string
	headers map[string]bool
}

// New folds every keyword once so Classify compares like against like.
func New(rules Rules) *Classifier {
	headers := make(map[string]bool, len(rules.Headers))
	for _, header := range rules.Headers {
		if normalized := normalize.Normalize(header); normalized != "" {
			headers[normalized] = true
		}
	}
	return &Classifier{
		exclude: fold(rules.Exclude),
		vegi:    fold(rules.Vegi),
		hit:     fold(rules.Hit),
		headers: headers,
	}
}

// Classify returns the category for item text plus an exclude flag. Sets are
// consulted in fixed priority order: exclusion short-circuits, then Vegi,
// then Hit; everything else is a regular Menu item. Empty text classifies
// as Unknown. First matching set wins, never longest match.
func (c *Classifier) Classify(text string) (menu.Category, bool) {
	folded := normalize.Normalize(text)
	if folded == "" {
		return menu.CategoryUnknown, false
	}
	if c.headers[folded] {
		return menu.CategoryUnknown, true
	}
	if containsAny(folded, c.exclude) {
		return menu.CategoryUnknown, true
	}
	if containsAny(folded, c.vegi) {
		return menu.CategoryVegi, false
	}
	if containsAny(folded, c.hit) {
		return menu.CategoryHit, false
	}
	return menu.CategoryMenu, false
}

func fold(keywords []string) []string {
	folded := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if normalized := normalize.Normalize(keyword); normalized != "" {
			folded = append(folded, normalized)
		}
	}
	return folded
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
