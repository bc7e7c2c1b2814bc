package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopbilling/internal/health"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/cache"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/postgres"
)

const redisPingTimeout = 2 * time.Second

// billStore — общее API хранилищ в памяти и PostgreSQL.
type billStore interface {
	domain.UnitOfWork
	domain.PriceWriter
	Bills() domain.BillRepository
	Outbox() domain.OutboxRepository
	OutboxPurger() domain.OutboxPurger
	Catalog() domain.ProductCatalog
	Ping(ctx context.Context) error
}

type runtimeDependencies struct {
	store          billStore
	catalog        domain.ProductCatalog
	prices         domain.PriceWriter
	outboxRepo     domain.OutboxRepository
	outboxPurger   domain.OutboxPurger
	storageChecker healthcheck.Checker
	seed           func(ctx context.Context, ref domain.ReferenceData) error
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище согласно cfg.StorageDriver
// и при наличии Redis оборачивает каталог кешем цен.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var deps *runtimeDependencies

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore(memory.WithLocation(cfg.Location()))
		deps = &runtimeDependencies{
			store: store,
			seed: func(_ context.Context, ref domain.ReferenceData) error {
				store.Seed(ref)
				return nil
			},
		}
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN,
			postgres.WithLocation(cfg.Location()),
			postgres.WithLogger(logger.WithField("layer", "postgres")),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.Info("postgres storage initialized")
		deps = &runtimeDependencies{
			store:   store,
			seed:    store.Seed,
			closeFn: store.Close,
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	deps.outboxRepo = deps.store.Outbox()
	deps.outboxPurger = deps.store.OutboxPurger()
	deps.catalog = deps.store.Catalog()
	deps.prices = deps.store
	deps.storageChecker = healthcheck.NewPingChecker(deps.store, 0)

	if client := initRedisClient(ctx, cfg.RedisAddr, logger); client != nil {
		prices := cache.NewPriceCache(deps.catalog, client,
			cache.WithTTL(cfg.PriceCacheTTL),
			cache.WithLogger(logger.WithField("layer", "price-cache")),
		).(*cache.PriceCache)
		// Смена цены через deps.prices сразу вычищает её из кэша.
		deps.catalog = prices
		deps.prices = prices.WritePrices(deps.store)
		deps.closeFn = chainClose(deps.closeFn, client.Close)
	}

	return deps, nil
}

// initRedisClient подключает Redis; недоступный Redis не мешает запуску.
func initRedisClient(ctx context.Context, addr string, logger *log.Entry) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", addr).Warn("redis is unavailable, price cache disabled")
		_ = client.Close()
		return nil
	}

	logger.WithField("addr", addr).Info("redis price cache enabled")
	return client
}

func chainClose(first, second func() error) func() error {
	if first == nil {
		return second
	}
	return func() error {
		return errors.Join(second(), first())
	}
}
