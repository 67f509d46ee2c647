package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/basketcase/api/controllers"
	"github.com/angelmondragon/basketcase/internal/bootstrap"
	"github.com/angelmondragon/basketcase/internal/refresh"
	pkgauth "github.com/angelmondragon/basketcase/pkg/auth"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/db/dbtest"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

const (
	testStore   = "01400943"
	testProduct = "0001111041700"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubRunner struct {
	summary *refresh.Summary
	err     error
}

func (s stubRunner) Run(context.Context) (*refresh.Summary, error) { return s.summary, s.err }

type harness struct {
	t       *testing.T
	app     *bootstrap.App
	handler http.Handler
	cfg     *config.Config
}

func newHarness(t *testing.T, pingers map[string]controllers.Pinger, runner controllers.RefreshRunner) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		API: config.APIConfig{
			JWTSecret:      "secret",
			JWTIssuer:      "basketcase",
			JWTTTLMinutes:  30,
			RequestTimeout: 5 * time.Second,
		},
	}
	client := dbtest.Client(t, models.All()...)
	require.NoError(t, client.DB().Create(&models.Store{StoreID: testStore, Name: "Kroger Main St"}).Error)
	require.NoError(t, client.DB().Create(&models.Product{ProductID: testProduct, Name: "Milk"}).Error)

	reg := prometheus.NewRegistry()
	app, err := bootstrap.Assemble(cfg, logger.Nop(), client, nil, bootstrap.Options{
		Registerer: reg,
		Now:        func() time.Time { return t0 },
	})
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:      cfg,
		Logger:      logger.Nop(),
		Pingers:     pingers,
		Gatherer:    reg,
		HTTPMetrics: app.HTTPMetrics,
		Audit:       app.Audit,
		Baskets:     app.Baskets,
		Prices:      app.Prices,
		Inflation:   app.Inflation,
		Refresh:     runner,
	})
	return &harness{t: t, app: app, handler: handler, cfg: cfg}
}

func (h *harness) token(role enums.OperatorRole) string {
	h.t.Helper()
	token, err := pkgauth.MintAdminToken(h.cfg.API, time.Now(), pkgauth.AdminTokenPayload{Operator: "ops", Role: role})
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": nil}, nil)

	resp := h.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get("X-Basketcase-Env"))

	resp = h.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"redis":"disabled"`)

	down := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{err: errors.New("gone")}}, nil)
	resp = down.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t, nil, nil)
	resp := h.do(http.MethodGet, "/api/v1/baskets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, resp))
}

func TestViewerCannotMutate(t *testing.T) {
	h := newHarness(t, nil, nil)
	resp := h.do(http.MethodPost, "/api/v1/baskets", h.token(enums.OperatorRoleViewer),
		map[string]any{"name": "Weekly", "store_id": testStore})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/baskets", h.token(enums.OperatorRoleViewer), nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestBasketInflationFlow(t *testing.T) {
	h := newHarness(t, nil, nil)
	admin := h.token(enums.OperatorRoleAdmin)
	conn := h.app.DB.DB()

	require.NoError(t, conn.Create(&models.PricePoint{
		ProductID: testProduct, StoreID: testStore, Price: decimal.RequireFromString("2.00"), CapturedAt: t0.Add(-24 * time.Hour),
	}).Error)

	resp := h.do(http.MethodPost, "/api/v1/baskets", admin, map[string]any{"name": "Weekly", "store_id": testStore})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var basket struct {
		ID      uuid.UUID `json:"id"`
		StoreID string    `json:"store_id"`
	}
	decodeData(t, resp, &basket)
	assert.Equal(t, testStore, basket.StoreID)
	base := "/api/v1/baskets/" + basket.ID.String()

	resp = h.do(http.MethodPost, base+"/inflation", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeEmptyBasket), errorCode(t, resp))

	resp = h.do(http.MethodPost, base+"/items", admin, map[string]any{"product_id": testProduct, "quantity": 3})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.NoError(t, conn.Create(&models.PricePoint{
		ProductID: testProduct, StoreID: testStore, Price: decimal.RequireFromString("2.20"), CapturedAt: t0.Add(7 * 24 * time.Hour),
	}).Error)

	resp = h.do(http.MethodPost, base+"/inflation", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result struct {
		InflationPercent float64 `json:"inflation_percent"`
		CurrentIndex     float64 `json:"current_index"`
	}
	decodeData(t, resp, &result)
	assert.InDelta(t, 10.0, result.InflationPercent, 1e-9)
	assert.InDelta(t, 110.0, result.CurrentIndex, 1e-9)

	resp = h.do(http.MethodGet, base+"/inflation", h.token(enums.OperatorRoleViewer), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &result)
	assert.InDelta(t, 10.0, result.InflationPercent, 1e-9)

	resp = h.do(http.MethodGet, base, admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var detail struct {
		Items []struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
	}
	decodeData(t, resp, &detail)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 3, detail.Items[0].Quantity)

	resp = h.do(http.MethodPost, base+"/clone", admin, map[string]any{"name": "Copy"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"items_copied":1`)

	resp = h.do(http.MethodGet, "/api/v1/stores/"+testStore+"/products/"+testProduct+"/prices", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var points []struct {
		Price string `json:"price"`
	}
	decodeData(t, resp, &points)
	require.Len(t, points, 2)
	assert.True(t, decimal.RequireFromString(points[0].Price).Equal(decimal.RequireFromString("2.00")))
}

func TestBasketValidationAndNotFound(t *testing.T) {
	h := newHarness(t, nil, nil)
	admin := h.token(enums.OperatorRoleAdmin)

	resp := h.do(http.MethodPost, "/api/v1/baskets", admin, map[string]any{"name": "", "store_id": "12"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/baskets/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/baskets/"+uuid.NewString()+"/inflation", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAdminRefresh(t *testing.T) {
	unconfigured := newHarness(t, nil, nil)
	resp := unconfigured.do(http.MethodPost, "/api/v1/admin/refresh", unconfigured.token(enums.OperatorRoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	summary := &refresh.Summary{Stores: 2, StoresFailed: 1}
	partial := newHarness(t, nil, stubRunner{
		summary: summary,
		err:     pkgerrors.New(pkgerrors.CodeUpstream, "1 of 2 stores failed"),
	})
	resp = partial.do(http.MethodPost, "/api/v1/admin/refresh", partial.token(enums.OperatorRoleAdmin), nil)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, resp.Body.String(), "1 of 2 stores failed")
	assert.Contains(t, resp.Body.String(), `"stores_failed":1`)

	busy := newHarness(t, nil, stubRunner{err: pkgerrors.New(pkgerrors.CodeConflict, "refresh already running")})
	resp = busy.do(http.MethodPost, "/api/v1/admin/refresh", busy.token(enums.OperatorRoleAdmin), nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestAdminErrorsListAndResolve(t *testing.T) {
	h := newHarness(t, nil, nil)
	admin := h.token(enums.OperatorRoleAdmin)
	ctx := context.Background()
	require.NoError(t, h.app.Audit.Record(ctx, enums.ErrorLevelError, enums.ComponentScheduler, "store 01400943 failed", errors.New("timeout")))
	require.NoError(t, h.app.Audit.Record(ctx, enums.ErrorLevelWarning, enums.ComponentCatalog, "seed skipped", nil))

	resp := h.do(http.MethodGet, "/api/v1/admin/errors?component=scheduler", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var entries []struct {
		ID        uuid.UUID `json:"id"`
		Component string    `json:"component"`
	}
	decodeData(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "SCHEDULER", entries[0].Component)

	resp = h.do(http.MethodPost, "/api/v1/admin/errors/"+entries[0].ID.String()+"/resolve", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/admin/errors", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), entries[0].ID.String())

	resp = h.do(http.MethodGet, "/api/v1/admin/errors?include_resolved=true", admin, nil)
	assert.Contains(t, resp.Body.String(), entries[0].ID.String())

	resp = h.do(http.MethodPost, "/api/v1/admin/errors/"+uuid.NewString()+"/resolve", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.do(http.MethodGet, "/health/live", "", nil)

	resp := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.True(t, strings.Contains(body, "basketcase_http_requests_total"))
	assert.Contains(t, body, `route="/health/live"`)
}
