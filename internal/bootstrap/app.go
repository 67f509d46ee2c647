// Package bootstrap assembles the repositories and services shared by the api, cron-worker
// and CLI binaries from one loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/catalog"
	"github.com/angelmondragon/basketcase/internal/cron"
	"github.com/angelmondragon/basketcase/internal/inflation"
	"github.com/angelmondragon/basketcase/internal/prices"
	"github.com/angelmondragon/basketcase/internal/refresh"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/db"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/kroger"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/metrics"
	"github.com/angelmondragon/basketcase/pkg/migrate"
	"github.com/angelmondragon/basketcase/pkg/redis"
)

const krogerTokenCacheKey = "kroger:access"

// Options tweak what New wires. The zero value connects everything the config enables.
type Options struct {
	// Registerer receives every metric collector; nil uses prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// SkipRedis keeps the process on in-memory locks even when Redis is configured.
	SkipRedis bool
	Now       func() time.Time
}

// App is the wired object graph. Catalog and Refresh are nil when no catalog credentials
// are configured; Redis is nil when it is disabled.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
	Kroger *kroger.Client

	BasketRepo baskets.Repository
	PriceRepo  prices.Repository

	Audit     audit.Service
	Baskets   baskets.Service
	Prices    prices.Service
	Inflation inflation.Service
	Catalog   catalog.Service
	Refresh   *refresh.Service

	CronMetrics *metrics.CronJobMetrics
	HTTPMetrics *metrics.HTTPMetrics
}

// New opens the database (running dev migrations when enabled), connects Redis when
// configured and builds every service.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "open database")
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "run dev migrations")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() && !opts.SkipRedis {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			_ = dbClient.Close()
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "connect redis")
		}
	}

	app, err := Assemble(cfg, logg, dbClient, redisClient, opts)
	if err != nil {
		_ = dbClient.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	return app, nil
}

// Assemble builds the services on already opened connections. redisClient may be nil.
func Assemble(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, opts Options) (*App, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	app := &App{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		CronMetrics: metrics.NewCronJobMetrics(reg),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	}
	conn := dbClient.DB()

	auditSvc, err := audit.NewService(audit.NewRepository(conn), logg, now)
	if err != nil {
		return nil, err
	}
	app.Audit = auditSvc

	app.BasketRepo = baskets.NewRepository(conn)
	app.Baskets, err = baskets.NewService(dbClient, app.BasketRepo, cfg.Basket.MaxItems, now)
	if err != nil {
		return nil, err
	}

	app.PriceRepo = prices.NewRepository(conn)
	app.Prices, err = prices.NewService(dbClient, app.PriceRepo, now)
	if err != nil {
		return nil, err
	}

	app.Inflation, err = inflation.NewService(inflation.Deps{
		Tx:      dbClient,
		Baskets: app.BasketRepo,
		Prices:  app.PriceRepo,
		Indices: inflation.NewRepository(conn),
		Audit:   auditSvc,
		Logger:  logg,
		Metrics: metrics.NewInflationMetrics(reg),
		Now:     now,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Kroger.ClientID == "" || cfg.Kroger.ClientSecret == "" {
		logg.Warn(context.Background(), "catalog credentials not configured; catalog and refresh disabled")
		return app, nil
	}

	krogerOpts := []kroger.Option{kroger.WithLogger(logg), kroger.WithClock(now)}
	if redisClient != nil {
		krogerOpts = append(krogerOpts, kroger.WithTokenCache(redisClient, redisClient.TokenKey(cfg.Kroger.ClientID)))
	}
	app.Kroger, err = kroger.NewClient(cfg.Kroger, krogerOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build catalog client")
	}

	app.Catalog, err = catalog.NewService(catalog.Deps{
		Tx:      dbClient,
		Source:  app.Kroger,
		Repo:    catalog.NewRepository(conn),
		Prices:  app.PriceRepo,
		Baskets: app.Baskets,
		Basket:  app.BasketRepo,
		Audit:   auditSvc,
		Logger:  logg,
		Now:     now,
	})
	if err != nil {
		return nil, err
	}

	var lock cron.Lock
	if redisClient != nil {
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(refresh.JobName), cfg.Refresh.LockTTL)
		if err != nil {
			return nil, err
		}
	}
	app.Refresh, err = refresh.NewService(refresh.Deps{
		Tx:        dbClient,
		Pairs:     app.Baskets,
		Source:    app.Kroger,
		Prices:    app.PriceRepo,
		Audit:     auditSvc,
		Lock:      lock,
		Logger:    logg,
		Metrics:   metrics.NewRefreshMetrics(reg),
		BatchSize: cfg.Refresh.BatchSize,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// RequireCatalog returns the catalog service or a VALIDATION error naming the missing settings.
func (a *App) RequireCatalog() (catalog.Service, error) {
	if a.Catalog == nil {
		return nil, errCatalogDisabled
	}
	return a.Catalog, nil
}

// RequireRefresh returns the refresh service or a VALIDATION error naming the missing settings.
func (a *App) RequireRefresh() (*refresh.Service, error) {
	if a.Refresh == nil {
		return nil, errCatalogDisabled
	}
	return a.Refresh, nil
}

var errCatalogDisabled = pkgerrors.New(pkgerrors.CodeValidation,
	"BASKETCASE_KROGER_CLIENT_ID and BASKETCASE_KROGER_CLIENT_SECRET must be set")

// Close releases the Redis and database connections.
func (a *App) Close() error {
	var err error
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}
