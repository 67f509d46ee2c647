package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

// Repository persists catalog reference data fetched from the price source.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertStores(ctx context.Context, stores []models.Store) error
	UpsertProducts(ctx context.Context, products []models.Product) error
	EnsureCategory(ctx context.Context, name string) (*models.Category, error)
	FindStore(ctx context.Context, storeID string) (*models.Store, error)
	FindProduct(ctx context.Context, productID string) (*models.Product, error)
}

type repositoryImpl struct {
	base repo.Base
}

// NewRepository binds the catalog repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.Tx(tx)}
}

func (r *repositoryImpl) UpsertStores(ctx context.Context, stores []models.Store) error {
	if len(stores) == 0 {
		return nil
	}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "postal_code", "latitude", "longitude", "hours", "updated_at"}),
	}).Create(&stores).Error
}

func (r *repositoryImpl) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"upc", "name", "brand", "category_id", "description", "size", "image_url", "updated_at"}),
	}).Create(&products).Error
}

// EnsureCategory returns the category named name, creating it on first sight.
func (r *repositoryImpl) EnsureCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	conn := r.base.DB(ctx)
	candidate := &models.Category{Name: name}
	if err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(candidate).Error; err != nil {
		return nil, err
	}
	var category models.Category
	if err := conn.Where("name = ?", name).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repositoryImpl) FindStore(ctx context.Context, storeID string) (*models.Store, error) {
	var store models.Store
	if err := r.base.DB(ctx).Where("store_id = ?", storeID).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repositoryImpl) FindProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).Where("product_id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
