package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/services"
	"finanzas/internal/storage"
	"finanzas/internal/storage/memory"
)

const (
	personCacheSize = 256
	personCacheTTL  = 10 * time.Minute
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new app factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateApp opens the store, connects the optional publisher and builds the
// services in dependency order.
func (f *DefaultFactory) CreateApp(ctx context.Context, config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(config)
	if err != nil {
		return nil, err
	}
	app := &App{Store: store, Preferences: config.Preferences}
	app.cleanup = append(app.cleanup, store.Close)

	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, config.UserID)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			app.Publisher = client
			publisher = client
			// Close the publisher before the store.
			app.cleanup = append([]CleanupFunc{client.Close}, app.cleanup...)
		}
	}

	opts := services.Options{
		Clock:       config.Clock,
		Publisher:   publisher,
		Preferences: config.Preferences,
	}
	app.wire(store, opts)

	f.logger.InfoContext(ctx, "Initialized application",
		"backend", config.Type,
		"sync_enabled", publisher != nil)
	return app, nil
}

func (f *DefaultFactory) openStore(config Config) (storage.DocumentStore, error) {
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return store, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		if config.Clock != nil {
			return memory.NewWithClock(config.Clock), nil
		}
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (a *App) wire(store storage.DocumentStore, opts services.Options) {
	a.PersonCache = cache.NewLRU[int64, core.Person](personCacheSize, personCacheTTL)
	a.Persons = services.NewPersonService(store, a.PersonCache, opts)
	a.Savings = services.NewSavingService(store, opts)
	a.Debts = services.NewDebtService(store, a.Persons, a.Savings, opts)
	a.Restarts = services.NewRestartReconciler(store, opts)
	a.Goals = services.NewGoalService(store, a.Debts, a.Savings, a.Restarts, opts)
	a.Lottery = services.NewLotteryService(store, opts)
	a.History = services.NewHistoryService(store, opts)
	a.Insights = services.NewInsightService(a.Goals, a.Debts, a.Savings, a.Lottery, opts)
}

// Close releases the publisher and then the store.
func (a *App) Close() error {
	var errs []error
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}
