package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

type addItemBody struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"0001","quantity":2}`))
	var body addItemBody
	require.NoError(t, DecodeJSONBody(r, &body))
	assert.Equal(t, 2, body.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndInvalidValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"0001","qty":2}`))
	var body addItemBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(r, &body), pkgerrors.CodeValidation))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"0001","quantity":0}`))
	err := DecodeJSONBody(r, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "quantity")
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500&all=yes", nil)
	_, err := ParseQueryInt(r, "limit", 50, 1, 200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	value, err := ParseQueryInt(r, "missing", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, value)

	_, err = ParseQueryBool(r, "all", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("basketId", id.String())
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	parsed, err := ParseUUIDParam(r, "basketId")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseUUIDParam(r, "other")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
