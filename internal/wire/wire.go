// Package wire provides dependency injection for the bark application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/example/bark/internal/adapters/bus"
	"github.com/example/bark/internal/adapters/handler"
	"github.com/example/bark/internal/adapters/metrics"
	"github.com/example/bark/internal/adapters/sqlite"
	"github.com/example/bark/internal/adapters/system"
	"github.com/example/bark/internal/app"
	"github.com/example/bark/internal/config"
	"github.com/example/bark/internal/db"
	"github.com/example/bark/internal/ports/primary"
	"github.com/example/bark/internal/ports/secondary"
)

var (
	cfg              *config.Config
	logger           *slog.Logger
	promMetrics      *metrics.Prometheus
	publisher        *bus.Publisher
	ledgerService    primary.LedgerService
	analyticsService primary.AnalyticsService
	once             sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the application logger.
func Logger() *slog.Logger {
	once.Do(initServices)
	return logger
}

// LedgerService returns the singleton LedgerService instance.
func LedgerService() primary.LedgerService {
	once.Do(initServices)
	return ledgerService
}

// AnalyticsService returns the singleton AnalyticsService instance.
func AnalyticsService() primary.AnalyticsService {
	once.Do(initServices)
	return analyticsService
}

// HTTPHandler returns the HTTP surface over the singleton services.
func HTTPHandler() http.Handler {
	once.Do(initServices)
	return handler.NewServer(handler.ServerDeps{
		Ledger:    ledgerService,
		Analytics: analyticsService,
		Metrics:   promMetrics.Handler(),
		Logger:    logger,
	})
}

// Close releases the publisher connection and the database.
func Close() {
	if publisher != nil {
		publisher.Close()
	}
	_ = db.Close()
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if cfg.DBPath != "" {
		db.SetPath(cfg.DBPath)
	}
	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	jobRepo := sqlite.NewJobRepository(database)
	transitionRepo := sqlite.NewTransitionRepository(database)
	transactor := sqlite.NewTransactor(database)

	promMetrics = metrics.NewPrometheus()

	var pub secondary.TransitionPublisher
	if cfg.NATS.URL != "" {
		publisher, err = bus.Connect(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.Timeout)
		if err != nil {
			// the ledger works without subscribers; keep going unpublished
			logger.Warn("nats unavailable, transitions will not be published", "url", cfg.NATS.URL, "error", err)
		} else {
			pub = publisher
		}
	}

	// Create services (primary ports implementation)
	ledgerService = app.NewLedgerService(app.LedgerDeps{
		Jobs:        jobRepo,
		Transitions: transitionRepo,
		Tx:          transactor,
		Authorizer:  system.NewEditorList(cfg.Editors),
		Clock:       system.Clock{},
		Publisher:   pub,
		Metrics:     promMetrics,
		Location:    cfg.Location,
		Logger:      logger,
	})
	analyticsService = app.NewAnalyticsService(app.AnalyticsDeps{
		Jobs:        jobRepo,
		Transitions: transitionRepo,
		Clock:       system.Clock{},
		Rules:       cfg.Rules,
		Location:    cfg.Location,
		WindowDays:  cfg.WindowDays,
		MaxWindow:   cfg.MaxWindow,
		Metrics:     promMetrics,
		Logger:      logger,
	})
}
