package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/classify"
	"github.com/lunchbot/menuwatch/internal/menu"
)

type fakeProber struct {
	candidates []menu.RawCandidate
	err        error
	calls      int
}

func (f *fakeProber) Strategy() menu.Strategy { return menu.StrategyAPI }

func (f *fakeProber) Probe(context.Context) ([]menu.RawCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeExtractor struct {
	strategy   menu.Strategy
	candidates []menu.RawCandidate
	err        error
	calls      int
	gotHTML    string
}

func (f *fakeExtractor) Strategy() menu.Strategy { return f.strategy }

func (f *fakeExtractor) Extract(html string) ([]menu.RawCandidate, error) {
	f.calls++
	f.gotHTML = html
	return f.candidates, f.err
}

type fakeFetcher struct {
	response menu.FetchResponse
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(context.Context, menu.FetchRequest) (menu.FetchResponse, error) {
	f.calls++
	return f.response, f.err
}

type fakeDetector struct{ render bool }

func (f fakeDetector) ShouldRender(menu.FetchResponse) bool { return f.render }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type deps struct {
	prober   *fakeProber
	text     *fakeExtractor
	dom      *fakeExtractor
	patterns *fakeExtractor
	fetcher  *fakeFetcher
	headless *fakeFetcher
	detector fakeDetector
}

func newDeps() *deps {
	return &deps{
		prober:   &fakeProber{},
		text:     &fakeExtractor{strategy: menu.StrategyTextBlock},
		dom:      &fakeExtractor{strategy: menu.StrategyDOMScan},
		patterns: &fakeExtractor{strategy: menu.StrategyPattern},
		fetcher:  &fakeFetcher{response: menu.FetchResponse{StatusCode: 200, Body: []byte("<html></html>")}},
	}
}

func newPipeline(t *testing.T, d *deps) *Pipeline {
	t.Helper()

	var headless menu.Fetcher
	if d.headless != nil {
		headless = d.headless
	}
	return New(
		Config{PageURL: "https://example.com/menu", Restaurant: "Kaserne", Location: "Timeout"},
		d.prober,
		d.text,
		d.dom,
		d.patterns,
		d.fetcher,
		headless,
		d.detector,
		classify.New(classify.DefaultRules()),
		fixedClock{now: time.Unix(1700000000, 0).UTC()},
		fixedIDs{id: "snap-1"},
		zap.NewNop(),
	)
}

func TestRunAPIProbeWinsWithoutPageFetch(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.prober.candidates = []menu.RawCandidate{
		{Title: "Fisch Filet", Price: "12.50"},
		{Title: "Vegi Curry", Price: "11.00"},
	}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, menu.StrategyAPI, result.Snapshot.SourceStrategy)
	require.Len(t, result.Snapshot.Items, 2)
	require.Equal(t, menu.CategoryMenu, result.Snapshot.Items[0].Category)
	require.Equal(t, menu.CategoryVegi, result.Snapshot.Items[1].Category)
	require.Zero(t, d.fetcher.calls, "api hit must not fetch the page")
	require.Zero(t, d.text.calls)
	require.Empty(t, result.PageHTML)
	require.Equal(t, []Attempt{{Stage: StageProbeAPI, Strategy: menu.StrategyAPI, Outcome: OutcomeHit}}, result.Attempts)
}

func TestRunAdvancesPastEmptyProbe(t *testing.T) {
	t.Parallel()

	d := newDeps()
	// Probe parses fine but carries no items, so the pipeline moves on.
	d.text.candidates = []menu.RawCandidate{{Title: "Tagessuppe", Price: "5.50"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, menu.StrategyTextBlock, result.Snapshot.SourceStrategy)
	require.Equal(t, 1, d.fetcher.calls)
	require.Equal(t, 1, d.prober.calls)
	require.Zero(t, d.dom.calls, "later stages stay untouched after a hit")
}

func TestRunExhaustionYieldsEmptySnapshot(t *testing.T) {
	t.Parallel()

	d := newDeps()

	result := newPipeline(t, d).Run(context.Background())

	require.NotNil(t, result.Snapshot.Items)
	require.Empty(t, result.Snapshot.Items)
	require.Equal(t, menu.StrategyNone, result.Snapshot.SourceStrategy)
	require.Equal(t, "snap-1", result.Snapshot.ID)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), result.Snapshot.FetchedAt)
	require.Equal(t, 1, d.fetcher.calls, "page is fetched once and shared")
	require.Len(t, result.Attempts, 4)
	for _, attempt := range result.Attempts {
		require.Equal(t, OutcomeEmpty, attempt.Outcome)
	}
}

func TestRunClassifiesExcludesAndDeduplicates(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.text.candidates = []menu.RawCandidate{
		{Title: "Fisch Filet", Price: "12.50"},
		{Title: "Vegi Curry", Price: "11.00"},
		{Title: "Frühstück Gipfeli", Price: "3.50"},
		{Title: "FISCH  FILET", Price: "99.00"},
	}

	result := newPipeline(t, d).Run(context.Background())

	require.Len(t, result.Snapshot.Items, 2)
	require.Equal(t, "Fisch Filet", result.Snapshot.Items[0].Title)
	require.Equal(t, "12.50", result.Snapshot.Items[0].Price, "first occurrence wins")
	require.Equal(t, "Vegi Curry", result.Snapshot.Items[1].Title)
}

func TestRunStrategyPriorityDecidesDuplicates(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.prober.candidates = []menu.RawCandidate{{Title: "Fisch Filet", Price: "12.50"}}
	d.text.candidates = []menu.RawCandidate{{Title: "Fisch Filet", Price: "88.00"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Len(t, result.Snapshot.Items, 1)
	require.Equal(t, "12.50", result.Snapshot.Items[0].Price)
	require.Zero(t, d.text.calls, "earlier strategy already delivered")
}

func TestRunFetchFailureFallsThroughAllHTMLStages(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.fetcher.err = errors.New("connection refused")

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, menu.StrategyNone, result.Snapshot.SourceStrategy)
	require.Equal(t, 1, d.fetcher.calls, "failed fetch is cached, not retried")
	require.Len(t, result.Attempts, 4)

	var netErr *menu.NetworkError
	require.ErrorAs(t, result.Attempts[1].Err, &netErr)
	require.Equal(t, OutcomeError, result.Attempts[3].Outcome)
}

func TestRunExtractorErrorFallsThrough(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.dom.err = &menu.ParseError{Strategy: menu.StrategyDOMScan, Err: errors.New("bad markup")}
	d.patterns.candidates = []menu.RawCandidate{{Title: "Wochenhit Cordon Bleu", Price: "15.00"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, menu.StrategyPattern, result.Snapshot.SourceStrategy)
	require.Equal(t, menu.CategoryHit, result.Snapshot.Items[0].Category)
	require.Equal(t, OutcomeError, result.Attempts[2].Outcome)
}

func TestRunHeadlessPromotion(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.fetcher.response = menu.FetchResponse{StatusCode: 200, Body: []byte("<div id=root></div>")}
	d.headless = &fakeFetcher{response: menu.FetchResponse{Body: []byte("<div>rendered menu</div>"), UsedHeadless: true}}
	d.detector = fakeDetector{render: true}
	d.text.candidates = []menu.RawCandidate{{Title: "Tagessuppe", Price: "5.50"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, "<div>rendered menu</div>", d.text.gotHTML)
	require.Equal(t, 1, d.headless.calls)
	require.Equal(t, menu.StrategyTextBlock, result.Snapshot.SourceStrategy)
}

func TestRunHeadlessFailureKeepsStaticBody(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.headless = &fakeFetcher{err: errors.New("browser gone")}
	d.detector = fakeDetector{render: true}
	d.text.candidates = []menu.RawCandidate{{Title: "Tagessuppe", Price: "5.50"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, "<html></html>", d.text.gotHTML)
	require.Equal(t, menu.StrategyTextBlock, result.Snapshot.SourceStrategy)
}

func TestRunSnapshotMetadata(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.fetcher.response = menu.FetchResponse{StatusCode: 200, Body: []byte("<h2>Menüplan vom 25.08.2026</h2><div>Fisch Filet – 12.50</div>")}
	d.text.candidates = []menu.RawCandidate{{Title: "Fisch Filet", Price: "12.50"}}

	result := newPipeline(t, d).Run(context.Background())

	require.Equal(t, "Kaserne", result.Snapshot.Restaurant)
	require.Equal(t, "Timeout", result.Snapshot.Location)
	require.Equal(t, "https://example.com/menu", result.Snapshot.URL)
	require.Equal(t, "25.08.2026", result.Snapshot.DisplayDate)
	require.NotEmpty(t, result.PageHTML)
}
