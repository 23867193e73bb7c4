package main

import (
	"context"
	"fmt"

	"github.com/liquichain/contract_layer/internal/config"
	"github.com/liquichain/contract_layer/internal/dispatch"
	"github.com/liquichain/contract_layer/internal/events"
	"github.com/liquichain/contract_layer/internal/handler"
	"github.com/liquichain/contract_layer/internal/handlers"
	"github.com/liquichain/contract_layer/internal/httpapi"
	"github.com/liquichain/contract_layer/internal/metrics"
	"github.com/liquichain/contract_layer/internal/selector"
	"github.com/liquichain/contract_layer/internal/wallet"
	"github.com/liquichain/contract_layer/internal/wallet/migrations"
	"github.com/liquichain/contract_layer/internal/worker"
	"github.com/liquichain/contract_layer/pkg/logger"
)

// application is the wired service.
type application struct {
	server     *httpapi.Server
	dispatcher *dispatch.Dispatcher
	pool       *worker.Pool
	store      wallet.Store
	collector  *metrics.Collector
	journal    *events.RingBuffer
}

func buildApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	collector := metrics.NewCollector("dispatcher")
	journal := events.NewRingBuffer(cfg.Events.BufferSize)

	loader := handler.NewLoader()
	if err := handlers.Register(loader); err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}
	log.WithField("handlers", loader.Count()).Info("contract handlers registered")

	entries := []selector.Entry(cfg.Contract.Selectors)
	if cfg.Contract.BuiltinSelectors {
		entries = append(entries, builtinEntries(entries)...)
	}
	registry, err := selector.New(entries...)
	if err != nil {
		return nil, fmt.Errorf("selector table: %w", err)
	}
	if missing := loader.Missing(registry.Handlers()); len(missing) > 0 {
		log.WithField("handlers", missing).Warn("selectors reference unregistered handlers")
	}

	abiDoc, err := cfg.ContractABI()
	if err != nil {
		return nil, err
	}
	if abiDoc == "" {
		abiDoc = handlers.TokenABI
	}

	pool := worker.NewPool(worker.LimiterConfig{
		MaxConcurrent:  cfg.Worker.MaxConcurrent,
		QueueSize:      cfg.Worker.QueueSize,
		AcquireTimeout: cfg.Worker.AcquireTimeout,
	})

	d, err := dispatch.New(dispatch.Config{
		Selectors: registry,
		ABI:       abiDoc,
		Loader:    loader,
		Pool:      pool,
		Timeout:   cfg.Dispatch.Timeout,
		Logger:    log.Named("dispatch"),
		Metrics:   collector,
		Events:    journal,
	})
	if err != nil {
		_ = pool.Close(ctx)
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		_ = pool.Close(ctx)
		return nil, err
	}

	wallets, err := wallet.NewService(wallet.ServiceConfig{
		Store:   store,
		Logger:  log.Named("wallet"),
		Metrics: collector,
		Events:  journal,
	})
	if err != nil {
		_ = pool.Close(ctx)
		return nil, err
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Dispatcher: d,
		Wallets:    wallets,
		Workers:    pool,
		Events:     journal,
		Metrics:    collector,
		Gatherer:   collector.Registry(),
		Logger:     log.Named("http"),
		RateLimit:  cfg.HTTP.RateLimit,
		RateBurst:  cfg.HTTP.RateBurst,
	})
	if err != nil {
		_ = pool.Close(ctx)
		return nil, err
	}

	return &application{
		server:     server,
		dispatcher: d,
		pool:       pool,
		store:      store,
		collector:  collector,
		journal:    journal,
	}, nil
}

// builtinEntries returns the built-in routes whose selector is not already
// configured.
func builtinEntries(configured []selector.Entry) []selector.Entry {
	taken := make(map[string]struct{}, len(configured))
	for _, e := range configured {
		taken[selector.Normalize(e.Selector)] = struct{}{}
	}
	var out []selector.Entry
	for _, e := range handlers.Selectors() {
		if _, ok := taken[selector.Normalize(e.Selector)]; !ok {
			out = append(out, e)
		}
	}
	return out
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (wallet.Store, error) {
	if cfg.URL == "" {
		log.Info("no database configured, wallets are kept in memory")
		return wallet.NewMemory(), nil
	}

	pg, err := wallet.OpenPostgres(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := migrations.Apply(ctx, pg.DB().DB); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate wallet schema: %w", err)
		}
		log.Info("wallet schema migrated")
	}
	return pg, nil
}

// close releases the pool and the database handle.
func (a *application) close(ctx context.Context) error {
	err := a.pool.Close(ctx)
	if pg, ok := a.store.(*wallet.Postgres); ok {
		if cerr := pg.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
