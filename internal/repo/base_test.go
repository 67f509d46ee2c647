package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

func TestNewBaseStoresConnection(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)
	require.Same(t, db, base.db)
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	require.Equal(t, ctx, withCtx.Statement.Context)

	require.Same(t, db, base.DB(nil))
}

func TestBaseTx(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)
	require.Equal(t, base, base.Tx(nil))

	other := dbtest.Open(t)
	require.Same(t, other, base.Tx(other).db)
}

func TestTranslate(t *testing.T) {
	require.NoError(t, Translate(nil, "basket"))

	err := Translate(gorm.ErrRecordNotFound, "basket")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "NOT_FOUND: basket not found", err.Error())

	err = Translate(errors.New("UNIQUE constraint failed: categories.name"), "category")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	err = Translate(errors.New("disk I/O error"), "price point")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))

	typed := pkgerrors.New(pkgerrors.CodeCapacity, "full")
	require.Same(t, typed, Translate(typed, "basket item"))
}
