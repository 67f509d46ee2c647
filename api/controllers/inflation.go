package controllers

import (
	"net/http"

	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/api/validators"
	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/inflation"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// InflationCalculate recomputes and stores the basket's indices.
func InflationCalculate(svc inflation.Service, rec audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithBasketID(ctx, id.String())
		}

		result, err := svc.Calculate(ctx, id)
		if err != nil {
			writeFailure(ctx, rec, logg, w, "calculate inflation", err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// InflationReport returns the last stored calculation without recomputing.
func InflationReport(svc inflation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "basketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Report(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
