package main

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/bootstrap"
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

type cliHarness struct {
	t      *testing.T
	rt     *runtime
	app    *bootstrap.App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		API: config.APIConfig{JWTSecret: "secret", JWTIssuer: "basketcase", JWTTTLMinutes: 30},
	}
	client := dbtest.Client(t, models.All()...)
	require.NoError(t, client.DB().Create(&models.Store{StoreID: testStore, Name: "Kroger Main St"}).Error)
	require.NoError(t, client.DB().Create(&models.Product{ProductID: testProduct, Name: "Milk"}).Error)

	app, err := bootstrap.Assemble(cfg, logger.Nop(), client, nil, bootstrap.Options{
		Registerer: prometheus.NewRegistry(),
		Now:        func() time.Time { return t0 },
	})
	require.NoError(t, err)

	return &cliHarness{
		t:      t,
		rt:     &runtime{cfg: cfg, app: app},
		app:    app,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

// run executes one command and returns its exit status.
func (h *cliHarness) run(args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	err := newApp(h.rt, h.stdout, h.stderr).RunContext(context.Background(), append([]string{"basketcase"}, args...))
	if err == nil {
		return 0
	}
	return h.rt.finish(context.Background(), err, h.stderr)
}

func (h *cliHarness) basketID(output string) uuid.UUID {
	h.t.Helper()
	start := strings.Index(output, "(ID: ")
	require.GreaterOrEqual(h.t, start, 0, output)
	id, err := uuid.Parse(output[start+5 : start+5+36])
	require.NoError(h.t, err)
	return id
}

func TestCLIBasketInflationFlow(t *testing.T) {
	h := newCLIHarness(t)
	conn := h.app.DB.DB()
	require.NoError(t, conn.Create(&models.PricePoint{
		ProductID: testProduct, StoreID: testStore, Price: decimal.RequireFromString("2.00"), CapturedAt: t0.Add(-24 * time.Hour),
	}).Error)

	require.Equal(t, 0, h.run("create-basket", "Weekly", testStore), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Created basket: Weekly (ID: ")
	id := h.basketID(h.stdout.String())

	require.Equal(t, 0, h.run("add-to-basket", id.String(), testProduct, "2"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Product ID: "+testProduct)
	assert.Contains(t, h.stdout.String(), "Quantity: 2")

	require.NoError(t, conn.Create(&models.PricePoint{
		ProductID: testProduct, StoreID: testStore, Price: decimal.RequireFromString("2.50"), CapturedAt: t0.Add(48 * time.Hour),
	}).Error)

	require.Equal(t, 0, h.run("calculate-inflation", id.String()), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "Inflation Report for Basket: Weekly")
	assert.Contains(t, out, "Base Index: 100.0 (at ")
	assert.Contains(t, out, "Current Index: 125.0")
	assert.Contains(t, out, "Change: +25.0%")

	require.Equal(t, 0, h.run("clone-basket", id.String(), "Weekly copy"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Original ID: "+id.String())
	assert.Contains(t, h.stdout.String(), "Items copied: 1")

	require.Equal(t, 0, h.run("list-baskets", "--store", testStore))
	assert.Contains(t, h.stdout.String(), "Weekly copy")

	require.Equal(t, 0, h.run("price-history", testProduct, testStore))
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "$2.00")
	assert.Contains(t, lines[1], "$2.50")

	require.Equal(t, 0, h.run("delete-basket", id.String()))
	assert.Equal(t, 3, h.run("calculate-inflation", id.String()))
}

func TestCLIFailuresExitWithCodeAndAreLogged(t *testing.T) {
	h := newCLIHarness(t)

	require.Equal(t, 0, h.run("create-basket", "Empty", testStore))
	id := h.basketID(h.stdout.String())

	assert.Equal(t, 4, h.run("calculate-inflation", id.String()))
	assert.Contains(t, h.stderr.String(), "Error: ")

	assert.Equal(t, 2, h.run("add-to-basket", "not-a-uuid", testProduct))
	assert.Contains(t, h.stderr.String(), "basket_id must be a UUID")

	assert.Equal(t, 2, h.run("clone-basket", id.String()))
	assert.Contains(t, h.stderr.String(), "usage: basketcase clone-basket <basket_id> <new_name>")

	assert.Equal(t, 2, h.run("find-stores", "45202"))
	assert.Contains(t, h.stderr.String(), "BASKETCASE_KROGER_CLIENT_ID")

	result, err := h.app.Audit.List(context.Background(), audit.ListParams{Limit: 10, Component: string(enums.ComponentCLI)})
	require.NoError(t, err)
	require.Len(t, result.Items, 4)
	commands := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		commands = append(commands, strings.SplitN(item.Message, ":", 2)[0])
	}
	assert.ElementsMatch(t, []string{"calculate-inflation", "add-to-basket", "clone-basket", "find-stores"}, commands)

	require.Equal(t, 0, h.run("errors", "list", "--component", string(enums.ComponentCLI)))
	assert.Contains(t, h.stdout.String(), "calculate-inflation")

	entry := result.Items[0]
	require.Equal(t, 0, h.run("errors", "resolve", entry.ID.String()))
	require.Equal(t, 0, h.run("errors", "list", "--all"))
	assert.Contains(t, h.stdout.String(), "resolved")
}

func TestCLIAdminTokenNeedsNoDatabase(t *testing.T) {
	cfg := &config.Config{API: config.APIConfig{JWTSecret: "secret", JWTIssuer: "basketcase", JWTTTLMinutes: 5}}
	rt := &runtime{
		load: func() (*config.Config, error) { return cfg, nil },
		build: func(context.Context, *config.Config, *logger.Logger) (*bootstrap.App, error) {
			t.Fatal("admin-token must not open the database")
			return nil, nil
		},
	}
	var stdout, stderr bytes.Buffer
	err := newApp(rt, &stdout, &stderr).RunContext(context.Background(),
		[]string{"basketcase", "admin-token", "--operator", "ops", "--role", "ADMIN"})
	require.NoError(t, err)

	claims, err := pkgauth.ParseAdminToken(cfg.API, strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator())
	assert.Equal(t, enums.OperatorRoleAdmin, claims.Role)

	err = newApp(rt, &stdout, &stderr).RunContext(context.Background(),
		[]string{"basketcase", "admin-token", "--operator", "ops", "--role", "owner"})
	assert.Equal(t, 2, rt.finish(context.Background(), err, &stderr))
}

func TestConfigLoadFailureIsValidation(t *testing.T) {
	rt := &runtime{load: func() (*config.Config, error) { return nil, fmt.Errorf("DATABASE_DSN is required") }}
	_, err := rt.services(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, pkgerrors.ExitCode(err))
	assert.Equal(t, "load configuration: DATABASE_DSN is required", describe(err))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "plain", describe(stdErrors.New("plain")))

	withFields := pkgerrors.New(pkgerrors.CodeValidation, "invalid input").
		WithDetails(map[string]string{"store_id": "must be 8 digits", "name": "is required"})
	assert.Equal(t, "invalid input (name is required; store_id must be 8 digits)", describe(withFields))
}

func TestFinishWithoutError(t *testing.T) {
	rt := &runtime{}
	var stderr bytes.Buffer
	assert.Equal(t, 0, rt.finish(context.Background(), nil, &stderr))
	assert.Empty(t, stderr.String())

	assert.Equal(t, 6, rt.finish(context.Background(), pkgerrors.New(pkgerrors.CodeUpstream, "catalog unavailable"), &stderr))
	assert.Equal(t, "Error: catalog unavailable\n", stderr.String())
}
