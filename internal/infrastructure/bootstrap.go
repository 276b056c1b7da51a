package infrastructure

import (
	"context"
	"log/slog"

	"paystreak/internal/bus"
	"paystreak/internal/cache"
	"paystreak/internal/config"
	"paystreak/internal/repository"
	"paystreak/internal/reward"
	"paystreak/internal/service"
	transportHTTP "paystreak/internal/transport/http"
	"paystreak/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	// The event-log connection has an explicit lifecycle owned here and is
	// injected into the publisher and subscriber; it dials lazily on first
	// use with the shared backoff policy.
	conn := bus.NewConnector(cfg.NatsAddr(), "paystreak")
	cleanupFns = append(cleanupFns, conn.Close)

	catalog := reward.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = reward.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		slog.Info("loaded reward catalog", "path", cfg.CatalogPath, "entries", len(catalog))
	}

	windowCache := cache.New(rdb)
	issuer := reward.NewIssuer(windowCache, catalog)
	pub := bus.NewPublisher(conn)
	ledger := repository.NewPaymentsRepo(db)

	var svc service.RewardService = service.New(ledger, pub, windowCache, issuer)

	servers := []Server{
		worker.NewSubscriber(conn, svc, cfg.ConsumerGroup),
	}
	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
