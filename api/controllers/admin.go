package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/basketcase/api/middleware"
	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/api/validators"
	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/refresh"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// RefreshRunner triggers one price refresh run.
type RefreshRunner interface {
	Run(ctx context.Context) (*refresh.Summary, error)
}

// AdminRefresh runs a price refresh synchronously. A partially failed run still reports its
// summary in the error details.
func AdminRefresh(runner RefreshRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if runner == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price refresh is not configured"))
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "triggered_by", middleware.OperatorFromContext(ctx))
			logg.Info(ctx, "on-demand price refresh requested")
		}

		summary, err := runner.Run(ctx)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && summary != nil {
				err = pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(summary)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

const (
	defaultErrorPageSize = 50
	maxErrorPageSize     = 500
)

// AdminErrorList pages through the error log, newest first. Resolved entries are hidden
// unless include_resolved=true.
func AdminErrorList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultErrorPageSize, 1, maxErrorPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeResolved, err := validators.ParseQueryBool(r, "include_resolved", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), audit.ListParams{
			Limit:           limit,
			Cursor:          r.URL.Query().Get("cursor"),
			IncludeResolved: includeResolved,
			Component:       r.URL.Query().Get("component"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]errorLogDTO, 0, len(result.Items))
		for _, entry := range result.Items {
			out = append(out, newErrorLogDTO(entry))
		}
		responses.WritePage(w, out, len(out), result.Cursor)
	}
}

func AdminErrorResolve(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "errorID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Resolve(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "resolved": true})
	}
}
