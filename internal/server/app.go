// Package server builds the menuwatch application from configuration and
// runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/lunchbot/menuwatch/internal/api"
	"github.com/lunchbot/menuwatch/internal/classify"
	"github.com/lunchbot/menuwatch/internal/clock/system"
	"github.com/lunchbot/menuwatch/internal/config"
	"github.com/lunchbot/menuwatch/internal/extract/apiprobe"
	"github.com/lunchbot/menuwatch/internal/extract/domscan"
	"github.com/lunchbot/menuwatch/internal/extract/pattern"
	"github.com/lunchbot/menuwatch/internal/extract/textblock"
	collyfetcher "github.com/lunchbot/menuwatch/internal/fetcher/colly"
	headlessfetcher "github.com/lunchbot/menuwatch/internal/fetcher/headless"
	"github.com/lunchbot/menuwatch/internal/hash/sha256"
	"github.com/lunchbot/menuwatch/internal/headless/detector"
	"github.com/lunchbot/menuwatch/internal/id/uuid"
	"github.com/lunchbot/menuwatch/internal/logging"
	"github.com/lunchbot/menuwatch/internal/menu"
	"github.com/lunchbot/menuwatch/internal/metrics"
	"github.com/lunchbot/menuwatch/internal/pages"
	pagesgcs "github.com/lunchbot/menuwatch/internal/pages/gcs"
	pageslocal "github.com/lunchbot/menuwatch/internal/pages/local"
	pagesmemory "github.com/lunchbot/menuwatch/internal/pages/memory"
	"github.com/lunchbot/menuwatch/internal/pipeline"
	memorypublisher "github.com/lunchbot/menuwatch/internal/publisher/memory"
	gcppublisher "github.com/lunchbot/menuwatch/internal/publisher/pubsub"
	"github.com/lunchbot/menuwatch/internal/refresh"
	boltstore "github.com/lunchbot/menuwatch/internal/store/bolt"
	memorystore "github.com/lunchbot/menuwatch/internal/store/memory"
	pgstore "github.com/lunchbot/menuwatch/internal/store/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	clock     *system.Clock
	apiServer *api.Server
	refresher *refresh.Refresher

	boltStore    *boltstore.Store
	history      *pgstore.HistoryStore
	headless     *headlessfetcher.Fetcher
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	gcsClient    *storage.Client
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("creating application",
		zap.Int("port", cfg.Server.Port),
		zap.String("page_url", cfg.PageURL()),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the refresher and HTTP server and blocks until the context is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("refresher started")
		a.refresher.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close gracefully shuts down the application.
func (a *App) Close() error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.boltStore != nil {
		if err := a.boltStore.Close(); err != nil {
			a.logger.Warn("bolt store close failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Source.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Source.Timezone, err)
	}
	app.clock = system.NewIn(loc)

	snapshots, err := setupSnapshots(app)
	if err != nil {
		return nil, err
	}
	history, err := setupHistory(ctx, app)
	if err != nil {
		return nil, err
	}
	archive, err := setupPages(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	runner := setupPipeline(app)

	app.refresher = refresh.New(
		runner,
		snapshots,
		history,
		archive,
		publisher,
		sha256.New(),
		app.clock,
		refresh.Config{
			Interval:    cfg.RefreshInterval(),
			MinInterval: cfg.MinRefreshInterval(),
			QueueDepth:  cfg.Refresh.TriggerQueueDepth,
			RunOnStart:  cfg.Refresh.RunOnStart,
			Topic:       cfg.PubSub.TopicName,
			ContentType: cfg.Pages.ContentType,
			BlobPrefix:  cfg.Pages.Prefix,
		},
		logger.Named("refresh"),
	)

	app.apiServer = api.NewServer(
		snapshots,
		history,
		app.refresher,
		*cfg,
		logger.Named("api"),
	)

	return app, nil
}

func setupSnapshots(app *App) (menu.SnapshotStore, error) {
	switch app.cfg.Store.Provider {
	case "bolt":
		app.logger.Info("using bolt snapshot store", zap.String("path", app.cfg.Store.BoltPath))
		store, err := boltstore.Open(app.cfg.Store.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt store init failed: %w", err)
		}
		app.boltStore = store
		return store, nil
	default:
		app.logger.Info("using in-memory snapshot store")
		return memorystore.New(), nil
	}
}

func setupHistory(ctx context.Context, app *App) (menu.HistoryStore, error) {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no database DSN configured, snapshot history disabled")
		return nil, nil
	}
	store, err := pgstore.NewHistoryStore(ctx, pgstore.HistoryConfig{
		DSN:   app.cfg.DB.DSN,
		Table: app.cfg.DB.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}
	app.history = store
	app.logger.Info("history store initialized", zap.String("table", app.cfg.DB.Table))
	return store, nil
}

func setupPages(ctx context.Context, app *App) (menu.PageArchive, error) {
	switch app.cfg.Pages.Provider {
	case "gcs":
		app.logger.Info("using GCS page archive")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		archive, err := pagesgcs.New(client, app.cfg.Pages.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("gcs page archive init failed: %w", err)
		}
		app.logger.Debug("GCS page archive", zap.String("bucket", app.cfg.Pages.GCSBucket))
		return archive, nil
	case "local":
		app.logger.Info("using local page archive", zap.String("dir", app.cfg.Pages.LocalDir))
		archive, err := pageslocal.New(pageslocal.Config{
			BaseDir:       app.cfg.Pages.LocalDir,
			RetentionDays: app.cfg.Pages.RetentionDays,
		})
		if err != nil {
			return nil, fmt.Errorf("local page archive init failed: %w", err)
		}
		return archive, nil
	case "memory":
		app.logger.Info("using in-memory page archive")
		return pagesmemory.New(), nil
	default:
		app.logger.Info("page archival disabled")
		return pages.NewNoop(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (menu.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubTopic), nil
}

func setupPipeline(app *App) *pipeline.Pipeline {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     app.cfg.HTTP.UserAgent,
		RespectRobots: app.cfg.HTTP.RespectRobots,
		Timeout:       app.cfg.HTTPTimeout(),
	})
	app.logger.Info("using colly page fetcher", zap.String("user_agent", app.cfg.HTTP.UserAgent))

	var headless menu.Fetcher
	var detect menu.HeadlessDetector
	if app.cfg.Headless.Enabled {
		hf, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       app.cfg.Headless.MaxParallel,
			UserAgent:         app.cfg.HTTP.UserAgent,
			WaitSelector:      app.cfg.Headless.WaitSelector,
			NavigationTimeout: app.cfg.HeadlessNavTimeout(),
		})
		if err != nil {
			app.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			app.headless = hf
			headless = hf
			detect = detector.NewHeuristic(app.cfg.Headless.MinVisibleText)
			app.logger.Info("headless rendering enabled", zap.Int("max_parallel", app.cfg.Headless.MaxParallel))
		}
	}

	return pipeline.New(
		pipeline.Config{
			PageURL:        app.cfg.PageURL(),
			Restaurant:     app.cfg.Source.Restaurant,
			Location:       app.cfg.Source.Location,
			AcceptLanguage: app.cfg.Source.AcceptLanguage,
		},
		apiprobe.New(fetcher, app.cfg.APIEndpoints(), app.cfg.Source.AcceptLanguage, app.logger.Named("apiprobe")),
		textblock.New(),
		domscan.New(app.cfg.ScanSelectors()),
		pattern.New(app.cfg.PatternBounds()),
		fetcher,
		headless,
		detect,
		classify.New(app.cfg.Rules()),
		app.clock,
		uuid.NewUUIDGenerator(),
		app.logger.Named("pipeline"),
	)
}
