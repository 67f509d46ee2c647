package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/internal/prices"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// PriceHistory returns the series of one (store, product) partition, oldest first. The
// optional from/to query parameters are RFC 3339 timestamps.
func PriceHistory(svc prices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID := strings.TrimSpace(chi.URLParam(r, "storeID"))
		productID := strings.TrimSpace(chi.URLParam(r, "productID"))

		var rng prices.TimeRange
		var err error
		if rng.From, err = parseTimeParam(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rng.To, err = parseTimeParam(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		points, err := svc.Query(r.Context(), productID, storeID, rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]pricePointDTO, 0, len(points))
		for _, p := range points {
			out = append(out, newPricePointDTO(p))
		}
		responses.WritePage(w, out, len(out), "")
	}
}

func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be an RFC 3339 timestamp").
			WithDetails(map[string]any{"field": key})
	}
	return t, nil
}
