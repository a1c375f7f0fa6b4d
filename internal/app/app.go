package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/handlers"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/logs"
	"github.com/ternarybob/pricewatch/internal/services/alerting"
	"github.com/ternarybob/pricewatch/internal/services/analyzer"
	"github.com/ternarybob/pricewatch/internal/services/events"
	"github.com/ternarybob/pricewatch/internal/services/fetcher"
	"github.com/ternarybob/pricewatch/internal/services/marketplace"
	"github.com/ternarybob/pricewatch/internal/services/notify"
	"github.com/ternarybob/pricewatch/internal/services/scheduler"
	"github.com/ternarybob/pricewatch/internal/services/tracker"
	"github.com/ternarybob/pricewatch/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	LogConsumer    *logs.Consumer

	// Fetching
	PageFetcher   interfaces.PageFetcher
	SearchFetcher interfaces.PageFetcher // Rendering proxy when configured, otherwise PageFetcher
	FetchPolicy   interfaces.FetchPolicy

	// Core services
	AnalyzerService  interfaces.PriceAnalyzer
	NotifyService    interfaces.Notifier
	TrackerService   *tracker.Service
	SearchService    interfaces.MarketSearcher
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	ItemHandler      *handlers.ItemHandler
	SearchHandler    *handlers.SearchHandler
	SchedulerHandler *handlers.SchedulerHandler
	WSHandler        *handlers.WebSocketHandler
	EventSubscriber  *handlers.EventSubscriber
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	// Cycle-correlated log lines flow through arbor's context channel into the consumer
	logConsumer := logs.NewConsumer(app.EventService, app.Logger, app.Config.Logging.MinEventLevel)
	if err := logConsumer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log consumer: %w", err)
	}
	app.LogConsumer = logConsumer

	logBatchChannel := logConsumer.GetChannel()
	app.Logger.SetChannel("context", logBatchChannel)
	app.Logger.Debug().
		Int("channel_capacity", cap(logBatchChannel)).
		Msg("Log consumer initialized with Arbor context channel")

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Strs("notification_channels", app.NotifyService.Channels()).
		Strs("search_sources", app.SearchService.Sources()).
		Int("max_concurrency", app.Config.Tracker.MaxConcurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger) and imports the item file
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	if a.Config.Catalog.ItemsFile != "" {
		if _, err := a.StorageManager.LoadItemsFromFile(context.Background(), a.Config.Catalog.ItemsFile); err != nil {
			// Log warning but don't fail startup; items can still be managed over the API
			a.Logger.Warn().Err(err).Str("path", a.Config.Catalog.ItemsFile).Msg("Failed to load items from file")
		}
	}

	return nil
}

// initServices initializes business services in dependency order:
// fetchers -> analysis and alerting -> tracker -> aggregator -> scheduler
func (a *App) initServices() error {
	pageFetcher, err := fetcher.New(a.Config.Fetcher, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create page fetcher: %w", err)
	}
	a.PageFetcher = pageFetcher
	a.FetchPolicy = fetcher.NewIdentityPolicy(a.Config.Fetcher)

	a.SearchFetcher = a.PageFetcher
	if a.Config.Search.RenderAPIKey != "" {
		a.SearchFetcher = fetcher.NewRenderAPIFetcher(fetcher.RenderAPIConfig{
			Endpoint:          a.Config.Search.RenderAPIURL,
			APIKey:            a.Config.Search.RenderAPIKey,
			RenderJS:          a.Config.Search.RenderJS,
			RequestsPerSecond: a.Config.Search.RequestsPerSecond,
		}, a.Logger)
		a.Logger.Debug().Str("endpoint", a.Config.Search.RenderAPIURL).Msg("Marketplace search uses rendering proxy")
	}

	historyStorage := a.StorageManager.HistoryStorage()
	a.AnalyzerService = analyzer.NewService(historyStorage)
	a.NotifyService = notify.NewService(a.Config.Notifications, a.Logger)

	a.TrackerService = tracker.NewService(
		a.StorageManager.CatalogStorage(),
		historyStorage,
		a.PageFetcher,
		a.FetchPolicy,
		a.AnalyzerService,
		alerting.NewPolicy(a.Config.Alerting),
		a.NotifyService,
		a.EventService,
		a.Config.Tracker,
		a.Logger,
	)

	sources, err := marketplace.SourcesByName(a.Config.Search.Sources)
	if err != nil {
		return fmt.Errorf("invalid search sources: %w", err)
	}
	a.SearchService = marketplace.NewService(
		a.SearchFetcher,
		a.FetchPolicy,
		sources,
		a.Config.Search,
		a.EventService,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.TrackerService, a.Config.Scheduler.RunOnStartup, a.Logger)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.ItemHandler = handlers.NewItemHandler(
		a.StorageManager.CatalogStorage(),
		a.StorageManager.HistoryStorage(),
		a.AnalyzerService,
		a.Logger,
	)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.LogConsumer, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.TrackerService, a.Logger)
	a.APIHandler.AddStatsReporter("websocket", a.WSHandler)
	if reporter, ok := a.PageFetcher.(handlers.StatsReporter); ok {
		a.APIHandler.AddStatsReporter("fetcher", reporter)
	}
	a.EventSubscriber = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &a.Config.WebSocket)
}

// Start registers the tracking schedule
func (a *App) Start() error {
	if err := a.SchedulerService.Start(a.Config.Scheduler.CheckInterval); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	// Scheduler first so no cycle starts while the fetchers close
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.SearchFetcher != nil && a.SearchFetcher != a.PageFetcher {
		if err := a.SearchFetcher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close search fetcher")
		}
	}
	if a.PageFetcher != nil {
		if err := a.PageFetcher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close page fetcher")
		}
	}

	// Give buffered context logs a moment to reach the consumer
	time.Sleep(100 * time.Millisecond)
	if a.LogConsumer != nil {
		if err := a.LogConsumer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log consumer")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
