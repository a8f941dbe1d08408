// Package refresh runs the extraction pipeline on a schedule and applies
// its side effects: snapshot storage, history archival, raw page archival
// and event publication.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/metrics"
	"github.com/lunchbot/menuwatch/internal/pipeline"
)

// Runner abstracts the extraction pipeline.
type Runner interface {
	Run(ctx context.Context) pipeline.Result
}

// Config controls Refresher behavior.
type Config struct {
	Interval    time.Duration
	MinInterval time.Duration
	QueueDepth  int
	RunOnStart  bool
	Topic       string
	ContentType string
	BlobPrefix  string
}

// Refresher owns the single extraction flow. All refreshes, scheduled or
// triggered, run sequentially on one goroutine.
type Refresher struct {
	runner    Runner
	snapshots menu.SnapshotStore
	history   menu.HistoryStore
	archive   menu.PageArchive
	publisher menu.Publisher
	hasher    menu.Hasher
	clock     menu.Clock
	cfg       Config
	logger    *zap.Logger

	trigger chan struct{}
	lastRun time.Time
}

// New constructs a Refresher. History, archive and publisher may be nil
// when the corresponding side effect is disabled.
func New(
	runner Runner,
	snapshots menu.SnapshotStore,
	history menu.HistoryStore,
	archive menu.PageArchive,
	publisher menu.Publisher,
	hasher menu.Hasher,
	clock menu.Clock,
	cfg Config,
	logger *zap.Logger,
) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Refresher{
		runner:    runner,
		snapshots: snapshots,
		history:   history,
		archive:   archive,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		trigger:   make(chan struct{}, cfg.QueueDepth),
	}
}

// Trigger requests an immediate refresh. It never blocks; when the queue is
// full the request is dropped because a refresh is already pending.
func (r *Refresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks, refreshing on the ticker and on triggers until the context
// finishes.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if r.cfg.RunOnStart {
		r.refresh(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.trigger:
			if r.cfg.MinInterval > 0 && r.clock.Now().Sub(r.lastRun) < r.cfg.MinInterval {
				r.logger.Debug("refresh trigger coalesced",
					zap.Time("last_run", r.lastRun),
					zap.Duration("min_interval", r.cfg.MinInterval),
				)
				continue
			}
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	r.lastRun = r.clock.Now()
	result := r.runner.Run(ctx)

	for _, attempt := range result.Attempts {
		metrics.ObserveStrategyAttempt(string(attempt.Strategy), string(attempt.Outcome))
	}

	snap := result.Snapshot
	if ctx.Err() != nil {
		// A run cut short by shutdown must not clobber the last good
		// snapshot.
		r.logger.Warn("refresh canceled, snapshot discarded",
			zap.String("snapshot_id", snap.ID),
			zap.Error(ctx.Err()),
		)
		metrics.ObserveRefresh(string(snap.SourceStrategy), "canceled")
		return
	}

	if err := r.snapshots.Put(ctx, snap); err != nil {
		r.logger.Error("store snapshot failed",
			zap.String("snapshot_id", snap.ID),
			zap.Error(err),
		)
		metrics.ObserveRefresh(string(snap.SourceStrategy), "store_error")
		return
	}

	status := "ok"
	if snap.Empty() {
		status = "empty"
	}
	metrics.ObserveRefresh(string(snap.SourceStrategy), status)
	metrics.SetSnapshotItems(len(snap.Items))
	for _, group := range menu.GroupByCategory(snap.Items) {
		metrics.ObserveItemsExtracted(string(group.Category), len(group.Items))
	}

	r.archivePage(ctx, snap, result.PageHTML)
	r.archiveHistory(ctx, snap)
	r.publishSnapshot(ctx, snap)

	r.logger.Info("refresh complete",
		zap.String("snapshot_id", snap.ID),
		zap.String("strategy", string(snap.SourceStrategy)),
		zap.Int("items", len(snap.Items)),
	)
}

func (r *Refresher) archivePage(ctx context.Context, snap menu.Snapshot, html string) {
	if r.archive == nil || html == "" {
		return
	}
	fp, err := r.hasher.Fingerprint([]byte(html))
	if err != nil {
		r.logger.Warn("fingerprint page failed", zap.Error(err))
		return
	}
	path := r.buildPagePath(snap, fp)
	uri, err := r.archive.PutObject(ctx, path, r.cfg.ContentType, []byte(html))
	if err != nil {
		r.logger.Warn("archive page failed", zap.String("path", path), zap.Error(err))
		return
	}
	r.logger.Debug("page archived", zap.String("uri", uri))
}

func (r *Refresher) buildPagePath(snap menu.Snapshot, hash string) string {
	// FetchedAt is stamped in the restaurant's timezone, so this is the
	// menu day, not the UTC day.
	day := snap.FetchedAt.Format(time.DateOnly)
	prefix := strings.Trim(r.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", day, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, day, hash)
}

func (r *Refresher) archiveHistory(ctx context.Context, snap menu.Snapshot) {
	if r.history == nil {
		return
	}
	if err := r.history.Archive(ctx, snap); err != nil {
		r.logger.Warn("archive snapshot failed",
			zap.String("snapshot_id", snap.ID),
			zap.Error(err),
		)
	}
}

func (r *Refresher) publishSnapshot(ctx context.Context, snap menu.Snapshot) {
	if r.cfg.Topic == "" || r.publisher == nil {
		return
	}
	payload := map[string]any{
		"snapshot_id": snap.ID,
		"strategy":    string(snap.SourceStrategy),
		"items":       len(snap.Items),
		"fetched_at":  snap.FetchedAt.Format(time.RFC3339),
		"empty":       snap.Empty(),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("publish snapshot failed",
			zap.String("snapshot_id", snap.ID),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("snapshot published",
		zap.String("snapshot_id", snap.ID),
		zap.String("topic", r.cfg.Topic),
	)
}
