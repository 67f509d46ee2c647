package prices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

// Repository is the storage contract of the price series. There is deliberately no update
// or delete: corrections are new points.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, points ...*models.PricePoint) error
	Series(ctx context.Context, productID, storeID string, rng TimeRange) ([]models.PricePoint, error)
	SeriesForProducts(ctx context.Context, storeID string, productIDs []string) (map[string][]models.PricePoint, error)
	Latest(ctx context.Context, productID, storeID string) (*models.PricePoint, error)
}

// TimeRange bounds a series query; zero ends are open. Both ends are inclusive.
type TimeRange struct {
	From time.Time
	To   time.Time
}

type repositoryImpl struct {
	base repo.Base
}

// NewRepository returns a price series repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.Tx(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, points ...*models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(points).Error
}

func (r *repositoryImpl) Series(ctx context.Context, productID, storeID string, rng TimeRange) ([]models.PricePoint, error) {
	query := r.base.DB(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID)
	if !rng.From.IsZero() {
		query = query.Where("captured_at >= ?", rng.From.UTC())
	}
	if !rng.To.IsZero() {
		query = query.Where("captured_at <= ?", rng.To.UTC())
	}

	var points []models.PricePoint
	if err := query.Order("captured_at ASC, id ASC").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (r *repositoryImpl) SeriesForProducts(ctx context.Context, storeID string, productIDs []string) (map[string][]models.PricePoint, error) {
	out := make(map[string][]models.PricePoint, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var points []models.PricePoint
	if err := r.base.DB(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Order("product_id ASC, captured_at ASC, id ASC").
		Find(&points).Error; err != nil {
		return nil, err
	}
	for _, p := range points {
		out[p.ProductID] = append(out[p.ProductID], p)
	}
	return out, nil
}

func (r *repositoryImpl) Latest(ctx context.Context, productID, storeID string) (*models.PricePoint, error) {
	var point models.PricePoint
	err := r.base.DB(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		Order("captured_at DESC, id DESC").
		Limit(1).
		Find(&point).Error
	if err != nil {
		return nil, err
	}
	if point.ID == uuid.Nil {
		return nil, nil
	}
	return &point, nil
}
