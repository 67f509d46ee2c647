package inflation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

// Repository persists the derived inflation index rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, index *models.InflationIndex) error
	PruneCategories(ctx context.Context, basketID uuid.UUID, keep []string) error
	Indices(ctx context.Context, basketID uuid.UUID) ([]IndexRow, error)
}

// IndexRow is a stored index joined with its category name.
type IndexRow struct {
	models.InflationIndex
	CategoryName string
}

type repositoryImpl struct {
	base repo.Base
}

// NewRepository binds the index repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.Tx(tx)}
}

// Upsert replaces the (basket, scope) row in place.
func (r *repositoryImpl) Upsert(ctx context.Context, index *models.InflationIndex) error {
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "basket_id"}, {Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category_id",
			"base_index",
			"current_index",
			"inflation_percent",
			"base_date",
			"calculated_at",
			"items_resolved",
			"items_skipped",
		}),
	}).Create(index).Error
}

// PruneCategories drops category rows of the basket whose scope is not in keep.
func (r *repositoryImpl) PruneCategories(ctx context.Context, basketID uuid.UUID, keep []string) error {
	query := r.base.DB(ctx).
		Where("basket_id = ? AND scope <> ?", basketID, models.ScopeOverall)
	if len(keep) > 0 {
		query = query.Where("scope NOT IN ?", keep)
	}
	return query.Delete(&models.InflationIndex{}).Error
}

func (r *repositoryImpl) Indices(ctx context.Context, basketID uuid.UUID) ([]IndexRow, error) {
	var rows []models.InflationIndex
	if err := r.base.DB(ctx).
		Where("basket_id = ?", basketID).
		Order("scope ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	var categoryIDs []uuid.UUID
	for _, row := range rows {
		if row.CategoryID != nil {
			categoryIDs = append(categoryIDs, *row.CategoryID)
		}
	}
	names := map[uuid.UUID]string{}
	if len(categoryIDs) > 0 {
		var categories []models.Category
		if err := r.base.DB(ctx).Where("id IN ?", categoryIDs).Find(&categories).Error; err != nil {
			return nil, err
		}
		for _, c := range categories {
			names[c.ID] = c.Name
		}
	}

	out := make([]IndexRow, 0, len(rows))
	for _, row := range rows {
		item := IndexRow{InflationIndex: row}
		if row.CategoryID != nil {
			item.CategoryName = names[*row.CategoryID]
		}
		out = append(out, item)
	}
	return out, nil
}
