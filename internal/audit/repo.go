package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	"github.com/angelmondragon/basketcase/pkg/enums"
	"github.com/angelmondragon/basketcase/pkg/pagination"
)

// Repository exposes persistence helpers for the error log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.ErrorLog) error
	List(ctx context.Context, params listParams) ([]models.ErrorLog, *pagination.Cursor, error)
	Resolve(ctx context.Context, id uuid.UUID, now time.Time) (resolveResult, error)
}

type repositoryImpl struct {
	base repo.Base
}

// NewRepository returns an error log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(db)}
}

type listParams struct {
	Limit          int
	Cursor         *pagination.Cursor
	UnresolvedOnly bool
	Component      enums.Component
}

type resolveResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.Tx(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, entry *models.ErrorLog) error {
	return r.base.DB(ctx).Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.ErrorLog, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.base.DB(ctx).Model(&models.ErrorLog{})
	if params.UnresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	if params.Component != "" {
		query = query.Where("component = ?", params.Component)
	}
	if params.Cursor != nil {
		query = query.Where("(logged_at, id) < (?, ?)", params.Cursor.At, params.Cursor.ID)
	}

	var entries []models.ErrorLog
	if err := query.Order("logged_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{At: next.LoggedAt, ID: next.ID}, nil
	}
	return entries, nil, nil
}

func (r *repositoryImpl) Resolve(ctx context.Context, id uuid.UUID, now time.Time) (resolveResult, error) {
	result := r.base.DB(ctx).
		Model(&models.ErrorLog{}).
		Where("id = ? AND resolved = ?", id, false).
		UpdateColumns(map[string]any{"resolved": true, "resolved_at": now})
	if result.Error != nil {
		return resolveResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return resolveResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.base.DB(ctx).Model(&models.ErrorLog{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return resolveResult{}, err
	}
	return resolveResult{Found: count > 0}, nil
}
