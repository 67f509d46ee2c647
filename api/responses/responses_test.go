package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusCreated, w.Code)
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
	assert.Nil(t, body.Page)
}

func TestWritePage(t *testing.T) {
	w := httptest.NewRecorder()
	WritePage(w, []string{"a"}, 1, "next")

	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.NotNil(t, body.Page)
	assert.Equal(t, "next", body.Page.NextCursor)
	assert.Equal(t, 1, body.Page.Count)
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeCapacity, "basket already holds 50 products").
		WithDetails(map[string]any{"max_items": 50})
	WriteError(context.Background(), logger.Nop(), w, err)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeCapacity), body.Error.Code)
	assert.Equal(t, "basket already holds 50 products", body.Error.Message)
	assert.NotNil(t, body.Error.Details)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("dial tcp 10.0.0.1:5432: refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	assert.NotContains(t, body.Error.Message, "10.0.0.1")
}

func TestWriteErrorPersistenceUsesPublicMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.Wrap(pkgerrors.CodePersistence, errors.New("tx aborted"), "persist basket"))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "storage unavailable", body.Error.Message)
}
