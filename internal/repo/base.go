package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/pkg/db"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tx rebinds the base to an open transaction; a nil tx keeps the current connection.
func (b Base) Tx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Translate maps persistence failures onto the typed error codes: missing rows become
// NOT_FOUND, unique violations CONFLICT, everything else PERSISTENCE_ERROR.
func Translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case db.IsNotFound(err):
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s not found", entity))
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("%s already exists", entity))
	default:
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("persist %s", entity))
	}
}
