package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/basketcase/api"
	"github.com/angelmondragon/basketcase/api/controllers"
	"github.com/angelmondragon/basketcase/api/routes"
	"github.com/angelmondragon/basketcase/internal/bootstrap"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/env"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Pingers:     map[string]controllers.Pinger{"database": app.DB, "redis": nil},
		Gatherer:    prometheus.DefaultGatherer,
		HTTPMetrics: app.HTTPMetrics,
		Audit:       app.Audit,
		Baskets:     app.Baskets,
		Prices:      app.Prices,
		Inflation:   app.Inflation,
	}
	if app.Redis != nil {
		deps.Pingers["redis"] = app.Redis
		deps.RateLimiter = app.Redis
	}
	if app.Refresh != nil {
		deps.Refresh = app.Refresh
	}

	// PORT wins so platform-assigned ports work without extra config
	port := env.Get("PORT", cfg.API.Port)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "port": port})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(port, routes.NewRouter(deps)), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
