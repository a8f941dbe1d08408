package domscan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunchbot/menuwatch/internal/menu"
)

func TestExtractStructuredCards(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<nav><div class="menu-item">Startseite</div></nav>
<div class="menu-item">
  <h4>Fisch Filet</h4>
  <p class="description">mit Reis und Gemüse</p>
  <span class="price">CHF 12.50</span>
</div>
<div class="menu-item">
  <h4>Vegi Curry</h4>
  <span class="price">11.00</span>
</div>
<footer><div class="menu-item">Impressum und Kontakt</div></footer>
</body></html>`

	e := New(DefaultConfig())
	candidates, err := e.Extract(page)
	require.NoError(t, err)
	require.Equal(t, []menu.RawCandidate{
		{Title: "Fisch Filet", Description: "mit Reis und Gemüse", Price: "CHF 12.50"},
		{Title: "Vegi Curry", Price: "11.00"},
	}, candidates)
}

func TestExtractSelectorPriority(t *testing.T) {
	t.Parallel()

	// .dish is more specific than .card and must win even though both match.
	page := `<html><body>
<div class="dish"><h4>Tagessuppe</h4><span class="price">5.50</span></div>
<div class="card"><h4>Wochenhit</h4><span class="price">15.00</span></div>
</body></html>`

	e := New(DefaultConfig())
	candidates, err := e.Extract(page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "Tagessuppe", candidates[0].Title)
}

func TestExtractBlobWithoutTitleChild(t *testing.T) {
	t.Parallel()

	page := `<div class="meal">Poulet-Geschnetzeltes mit Nudeln CHF 13.50</div>`

	e := New(DefaultConfig())
	candidates, err := e.Extract(page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "Poulet-Geschnetzeltes mit Nudeln", candidates[0].Title)
	require.Equal(t, "CHF 13.50", candidates[0].Price)
}

func TestExtractDataPriceAttribute(t *testing.T) {
	t.Parallel()

	page := `<div class="dish"><h4>Fisch Filet</h4><span data-price="12.50"></span></div>`

	e := New(DefaultConfig())
	candidates, err := e.Extract(page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "12.50", candidates[0].Price)
}

func TestExtractNothingPlausible(t *testing.T) {
	t.Parallel()

	page := `<html><body><nav><div class="menu-item">Home</div></nav><p>Willkommen</p></body></html>`

	e := New(DefaultConfig())
	candidates, err := e.Extract(page)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestStrategyName(t *testing.T) {
	t.Parallel()

	require.Equal(t, menu.StrategyDOMScan, New(DefaultConfig()).Strategy())
}
