package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/pkg/config"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Basketcase-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. A nil pinger is reported as disabled.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Basketcase-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed []string
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "disabled"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				continue
			}
			checks[name] = "up"
		}

		if len(failed) > 0 {
			sort.Strings(failed)
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePersistence, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
