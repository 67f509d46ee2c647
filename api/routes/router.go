package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/basketcase/api/controllers"
	"github.com/angelmondragon/basketcase/api/middleware"
	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/inflation"
	"github.com/angelmondragon/basketcase/internal/prices"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/enums"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/metrics"
)

const rateLimitWindow = time.Minute

// Deps are the services the admin API exposes. Refresh and RateLimiter may be nil; a nil
// Refresh answers the refresh route with a validation error.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Pingers     map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	RateLimiter middleware.RateLimitStore

	Audit     audit.Service
	Baskets   baskets.Service
	Prices    prices.Service
	Inflation inflation.Service
	Refresh   controllers.RefreshRunner
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Pingers, logg))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	readers := middleware.RequireRole(logg, enums.OperatorRoleViewer, enums.OperatorRoleAdmin)
	admins := middleware.RequireRole(logg, enums.OperatorRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateLimiter, cfg.API.RateLimit, rateLimitWindow, logg))
		r.Use(middleware.AdminAuth(cfg.API, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.API.RequestTimeout))

			r.With(readers).Get("/baskets", controllers.BasketList(d.Baskets, logg))
			r.With(admins).Post("/baskets", controllers.BasketCreate(d.Baskets, d.Audit, logg))
			r.Route("/baskets/{basketID}", func(r chi.Router) {
				r.With(readers).Get("/", controllers.BasketGet(d.Baskets, logg))
				r.With(admins).Delete("/", controllers.BasketDelete(d.Baskets, d.Audit, logg))
				r.With(admins).Post("/items", controllers.BasketAddItem(d.Baskets, d.Audit, logg))
				r.With(admins).Post("/clone", controllers.BasketClone(d.Baskets, d.Audit, logg))
				r.With(admins).Post("/inflation", controllers.InflationCalculate(d.Inflation, d.Audit, logg))
				r.With(readers).Get("/inflation", controllers.InflationReport(d.Inflation, logg))
			})

			r.With(readers).Get("/stores/{storeID}/products/{productID}/prices", controllers.PriceHistory(d.Prices, logg))

			r.Route("/admin/errors", func(r chi.Router) {
				r.With(readers).Get("/", controllers.AdminErrorList(d.Audit, logg))
				r.With(admins).Post("/{errorID}/resolve", controllers.AdminErrorResolve(d.Audit, logg))
			})
		})

		// a refresh can outlast the request timeout, so it runs on the bare request context
		r.With(admins).Post("/admin/refresh", controllers.AdminRefresh(d.Refresh, logg))
	})

	return r
}
