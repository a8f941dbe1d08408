// Package pipeline runs the ordered extraction strategies as an explicit
// state machine. A run walks ProbeAPI, ExtractText, ScanDOM and
// MatchPatterns in that order and stops at the first stage whose candidates
// survive classification. Exhausting every stage produces an empty snapshot
// flagged with StrategyNone; "no menu found" is a result, not an error.
package pipeline

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/extract/pattern"
	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/normalize"
)

// Stage names one state of the extraction state machine.
type Stage string

// Stages in fallback order.
const (
	StageProbeAPI      Stage = "probe_api"
	StageExtractText   Stage = "extract_text"
	StageScanDOM       Stage = "scan_dom"
	StageMatchPatterns Stage = "match_patterns"
	StageDone          Stage = "done"
)

// next returns the following stage. The order is fixed; the only way to
// leave it early is a stage producing accepted items.
func next(stage Stage) Stage {
	switch stage {
	case StageProbeAPI:
		return StageExtractText
	case StageExtractText:
		return StageScanDOM
	case StageScanDOM:
		return StageMatchPatterns
	default:
		return StageDone
	}
}

// Outcome classifies one stage execution.
type Outcome string

// Stage outcomes as recorded in Result.Attempts.
const (
	OutcomeHit   Outcome = "hit"
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

// Attempt records one executed stage for logging and metrics.
type Attempt struct {
	Stage    Stage
	Strategy menu.Strategy
	Outcome  Outcome
	Err      error
}

// Result carries the snapshot plus everything the caller needs for side
// effects: the raw page for archival and the per-stage attempt trail.
type Result struct {
	Snapshot menu.Snapshot
	PageHTML string
	Attempts []Attempt
}

// Config identifies the menu source being scraped.
type Config struct {
	PageURL    string
	Restaurant string
	Location   string
	// AcceptLanguage is sent on every page fetch. The menu is published
	// in the restaurant's language; a bare request may get the English
	// shell instead.
	AcceptLanguage string
}

// Pipeline owns one sequential extraction flow. It is safe to run again
// after a run completes; each run produces a fresh snapshot that supersedes
// the previous one, last writer wins.
type Pipeline struct {
	cfg        Config
	prober     menu.Prober
	text       menu.Extractor
	dom        menu.Extractor
	patterns   menu.Extractor
	fetcher    menu.Fetcher
	headless   menu.Fetcher
	detector   menu.HeadlessDetector
	classifier menu.Classifier
	clock      menu.Clock
	ids        menu.IDGenerator
	logger     *zap.Logger
}

// New wires the pipeline. The headless fetcher and detector may be nil when
// browser rendering is disabled.
func New(
	cfg Config,
	prober menu.Prober,
	text menu.Extractor,
	dom menu.Extractor,
	patterns menu.Extractor,
	fetcher menu.Fetcher,
	headless menu.Fetcher,
	detector menu.HeadlessDetector,
	classifier menu.Classifier,
	clock menu.Clock,
	ids menu.IDGenerator,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		prober:     prober,
		text:       text,
		dom:        dom,
		patterns:   patterns,
		fetcher:    fetcher,
		headless:   headless,
		detector:   detector,
		classifier: classifier,
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}
}

// fetchedPage caches the single page fetch shared by the HTML stages. The
// error is cached too so a failed fetch is not retried within one run.
type fetchedPage struct {
	html string
	err  error
}

// Run executes the state machine once. Strategy failures degrade to
// fallthrough; the result is never an error, only an empty snapshot when
// everything came up short.
func (p *Pipeline) Run(ctx context.Context) Result {
	var page *fetchedPage
	var attempts []Attempt
	items := []menu.Item{}
	strategy := menu.StrategyNone

	for stage := StageProbeAPI; stage != StageDone; stage = next(stage) {
		var candidates []menu.RawCandidate
		var current menu.Strategy
		var err error

		if stage == StageProbeAPI {
			current = p.prober.Strategy()
			candidates, err = p.prober.Probe(ctx)
		} else {
			extractor := p.extractorFor(stage)
			current = extractor.Strategy()
			if page == nil {
				html, fetchErr := p.fetchPage(ctx)
				page = &fetchedPage{html: html, err: fetchErr}
			}
			if page.err != nil {
				err = page.err
			} else {
				candidates, err = extractor.Extract(page.html)
			}
		}

		if err != nil {
			p.logger.Warn("strategy fell through",
				zap.String("stage", string(stage)), zap.Error(err))
			attempts = append(attempts, Attempt{Stage: stage, Strategy: current, Outcome: OutcomeError, Err: err})
			continue
		}
		accepted := p.accept(candidates)
		if len(accepted) == 0 {
			p.logger.Debug("strategy found nothing", zap.String("stage", string(stage)))
			attempts = append(attempts, Attempt{Stage: stage, Strategy: current, Outcome: OutcomeEmpty})
			continue
		}
		attempts = append(attempts, Attempt{Stage: stage, Strategy: current, Outcome: OutcomeHit})
		items = accepted
		strategy = current
		break
	}

	snapshot := menu.Snapshot{
		Restaurant: p.cfg.Restaurant,
		Location:   p.cfg.Location,
		URL:        p.cfg.PageURL,
		Items:      items,
		// The clock runs in the restaurant's timezone; keeping its zone
		// here is what makes day-keyed archives roll at local midnight.
		FetchedAt:      p.clock.Now(),
		SourceStrategy: strategy,
	}
	if id, err := p.ids.NewID(); err == nil {
		snapshot.ID = id
	} else {
		p.logger.Warn("snapshot id generation failed", zap.Error(err))
	}

	result := Result{Snapshot: snapshot, Attempts: attempts}
	if page != nil && page.err == nil {
		result.PageHTML = page.html
		snapshot.DisplayDate = pattern.Date(page.html)
		result.Snapshot = snapshot
	}

	if strategy == menu.StrategyNone {
		p.logger.Info("no menu found", zap.String("url", p.cfg.PageURL))
	} else {
		p.logger.Info("menu extracted",
			zap.String("strategy", string(strategy)), zap.Int("items", len(items)))
	}
	return result
}

func (p *Pipeline) extractorFor(stage Stage) menu.Extractor {
	switch stage {
	case StageExtractText:
		return p.text
	case StageScanDOM:
		return p.dom
	default:
		return p.patterns
	}
}

// fetchPage fetches the menu page once, promoting to a headless render when
// the detector flags the static body as a script shell. A failed render
// falls back to the static body rather than failing the stage.
func (p *Pipeline) fetchPage(ctx context.Context) (string, error) {
	response, err := p.fetcher.Fetch(ctx, menu.FetchRequest{URL: p.cfg.PageURL, Headers: p.pageHeaders()})
	if err != nil {
		return "", &menu.NetworkError{URL: p.cfg.PageURL, Err: err}
	}
	if p.headless != nil && p.detector != nil && p.detector.ShouldRender(response) {
		p.logger.Debug("static body looks like a script shell, rendering", zap.String("url", p.cfg.PageURL))
		rendered, renderErr := p.headless.Fetch(ctx, menu.FetchRequest{URL: p.cfg.PageURL, UseHeadless: true, Headers: p.pageHeaders()})
		if renderErr != nil {
			p.logger.Warn("headless render failed, keeping static body", zap.Error(renderErr))
			return string(response.Body), nil
		}
		return string(rendered.Body), nil
	}
	return string(response.Body), nil
}

func (p *Pipeline) pageHeaders() http.Header {
	if p.cfg.AcceptLanguage == "" {
		return nil
	}
	return http.Header{"Accept-Language": {p.cfg.AcceptLanguage}}
}

// accept runs candidates through normalization and classification, drops
// excluded ones and deduplicates on the folded title. The first occurrence
// wins; insertion order is the display order.
func (p *Pipeline) accept(candidates []menu.RawCandidate) []menu.Item {
	items := make([]menu.Item, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		key := normalize.Normalize(candidate.Title)
		if key == "" {
			continue
		}
		category, exclude := p.classifier.Classify(strings.TrimSpace(candidate.Title + " " + candidate.Description))
		if exclude {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, menu.Item{
			Title:       normalize.Clean(candidate.Title),
			Description: normalize.Clean(candidate.Description),
			Price:       normalize.Clean(candidate.Price),
			Category:    category,
		})
	}
	return items
}
