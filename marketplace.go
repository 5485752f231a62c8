// Package marketplace wires the cart store to its configured storage backend
// and event publisher.
package marketplace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gofalre.io/marketplace/cart"
	"gofalre.io/marketplace/config"
	"gofalre.io/marketplace/driver"
	"gofalre.io/marketplace/event"
)

type App struct {
	Store      *cart.Store
	Repository cart.Repository

	logger  *zap.Logger
	closers []func(context.Context) error
}

// NewApp opens the storage backend named by cfg and builds a store on top of
// it. Start must be called before the store is used.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...cart.Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{logger: logger}

	kv, err := app.openStorage(ctx, cfg.Storage)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.Repository = cart.NewRepository(kv, logger.Named("repository"))

	storeOpts := []cart.Option{
		cart.WithLogger(logger.Named("store")),
		cart.WithRefreshOnAdd(cfg.Cart.RefreshOnAdd),
		cart.WithWriteTimeout(cfg.Cart.WriteTimeout),
	}
	app.Store = cart.New(app.Repository, append(storeOpts, opts...)...)

	if cfg.NATS.URL != "" {
		nc, err := event.Connect(cfg.NATS.URL, logger)
		if err != nil {
			_ = app.Close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return nc.Drain() })

		publisher := event.NewPublisher(nc, logger.Named("events"))
		app.Store.Subscribe(publisher.Handle)
		logger.Info("Publishing cart events", zap.String("url", cfg.NATS.URL))
	}

	return app, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.StorageConfig) (driver.KeyValueStore, error) {
	a.logger.Info("Opening cart storage", zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverMemory:
		return driver.NewMemoryStore(), nil

	case config.DriverSQLite:
		store, err := driver.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		return store, nil

	case config.DriverRedis:
		client, err := driver.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		return driver.NewRedisStore(client), nil

	case config.DriverPostgres:
		db, err := driver.ConnectSQL(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { db.Pool.Close(); return nil })

		tm := driver.NewTransactionManager(db.Pool, a.logger.Named("tx"))
		return driver.NewPostgresStore(ctx, db.Pool, tm)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Start loads the persisted cart.
func (a *App) Start(ctx context.Context) error {
	return a.Store.Initialize(ctx)
}

// Close flushes the cart and releases storage and NATS connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close cart store: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
