package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/basketcase/api"
	"github.com/angelmondragon/basketcase/api/controllers"
	"github.com/angelmondragon/basketcase/internal/bootstrap"
	"github.com/angelmondragon/basketcase/internal/cron"
	"github.com/angelmondragon/basketcase/internal/refresh"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

const cycleLockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logg, bootstrap.Options{})
	if err != nil {
		logg.Error(ctx, "failed to bootstrap services", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	refreshSvc, err := app.RequireRefresh()
	if err != nil {
		logg.Error(ctx, "price refresh unavailable", err)
		os.Exit(1)
	}

	service, err := newScheduler(cfg, app, refreshSvc)
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"service_kind": cfg.Service.Kind,
		"weekday":      strings.ToLower(cfg.Refresh.Weekday),
		"time":         cfg.Refresh.TimeOfDay,
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := service.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		return api.Serve(groupCtx, api.NewServer(cfg.API.MetricsPort, opsRouter(cfg, app)), logg)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newScheduler(cfg *config.Config, app *bootstrap.App, refreshSvc *refresh.Service) (*cron.Service, error) {
	slot, err := cfg.Refresh.Slot()
	if err != nil {
		return nil, err
	}

	var (
		lock    cron.Lock
		markers cron.MarkerStore
	)
	if app.Redis != nil {
		redisLock, err := cron.NewRedisLock(app.Redis, app.Redis.LockKey(cycleLockName), cfg.Refresh.LockTTL)
		if err != nil {
			return nil, err
		}
		lock = redisLock
		markers = cron.NewRedisMarkerStore(app.Redis)
	} else {
		lock = cron.NewLocalLock()
		markers = cron.NewMemoryMarkerStore()
	}

	return cron.NewService(cron.ServiceParams{
		Logger:       app.Logger,
		Registry:     cron.NewRegistry(refresh.NewJob(refreshSvc)),
		Lock:         lock,
		Markers:      markers,
		Schedule:     cron.NewWeekly(slot),
		Metrics:      app.CronMetrics,
		PollInterval: cfg.Refresh.PollInterval,
	})
}

func opsRouter(cfg *config.Config, app *bootstrap.App) *chi.Mux {
	pingers := map[string]controllers.Pinger{"database": app.DB, "redis": nil}
	if app.Redis != nil {
		pingers["redis"] = app.Redis
	}
	r := chi.NewRouter()
	r.Get("/health", controllers.HealthReady(cfg, pingers, app.Logger))
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Handle("/metrics", promhttp.Handler())
	return r
}
