package baskets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/basketcase/internal/repo"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

// Repository exposes persistence helpers for baskets and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBasket(ctx context.Context, basket *models.Basket) error
	FindBasket(ctx context.Context, id uuid.UUID) (*models.Basket, error)
	ListBaskets(ctx context.Context, storeID string) ([]models.Basket, error)
	DeleteBasket(ctx context.Context, id uuid.UUID) (bool, error)
	Items(ctx context.Context, basketID uuid.UUID) ([]models.BasketItem, error)
	ItemDetails(ctx context.Context, basketID uuid.UUID) ([]ItemDetail, error)
	FindItem(ctx context.Context, basketID uuid.UUID, productID string) (*models.BasketItem, error)
	CountItems(ctx context.Context, basketID uuid.UUID) (int64, error)
	UpsertItem(ctx context.Context, item *models.BasketItem) error
	CreateItems(ctx context.Context, items []models.BasketItem) error
	StoreExists(ctx context.Context, storeID string) (bool, error)
	ProductExists(ctx context.Context, productID string) (bool, error)
	TrackedPairs(ctx context.Context) ([]TrackedPair, error)
}

// ItemDetail is a basket item joined with the descriptive product columns.
type ItemDetail struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Quantity    int        `json:"quantity"`
}

// TrackedPair is one (product, store) partition referenced by at least one basket.
type TrackedPair struct {
	ProductID string
	StoreID   string
}

type repositoryImpl struct {
	base repo.Base
}

// NewRepository returns a basket repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.Tx(tx)}
}

func (r *repositoryImpl) CreateBasket(ctx context.Context, basket *models.Basket) error {
	return r.base.DB(ctx).Create(basket).Error
}

func (r *repositoryImpl) FindBasket(ctx context.Context, id uuid.UUID) (*models.Basket, error) {
	var basket models.Basket
	if err := r.base.DB(ctx).Where("id = ?", id).First(&basket).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

func (r *repositoryImpl) ListBaskets(ctx context.Context, storeID string) ([]models.Basket, error) {
	query := r.base.DB(ctx).Model(&models.Basket{})
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	var baskets []models.Basket
	if err := query.Order("created_at DESC, id DESC").Find(&baskets).Error; err != nil {
		return nil, err
	}
	return baskets, nil
}

// DeleteBasket removes the basket with its items and derived indices. Clones keep existing
// and lose their parent link.
func (r *repositoryImpl) DeleteBasket(ctx context.Context, id uuid.UUID) (bool, error) {
	conn := r.base.DB(ctx)
	if err := conn.Where("basket_id = ?", id).Delete(&models.BasketItem{}).Error; err != nil {
		return false, err
	}
	if err := conn.Where("basket_id = ?", id).Delete(&models.InflationIndex{}).Error; err != nil {
		return false, err
	}
	if err := conn.Model(&models.Basket{}).Where("parent_basket_id = ?", id).Update("parent_basket_id", nil).Error; err != nil {
		return false, err
	}
	result := conn.Where("id = ?", id).Delete(&models.Basket{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Items(ctx context.Context, basketID uuid.UUID) ([]models.BasketItem, error) {
	var items []models.BasketItem
	if err := r.base.DB(ctx).
		Where("basket_id = ?", basketID).
		Order("added_at ASC, product_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repositoryImpl) ItemDetails(ctx context.Context, basketID uuid.UUID) ([]ItemDetail, error) {
	var rows []ItemDetail
	err := r.base.DB(ctx).
		Table("basket_items AS bi").
		Select("bi.product_id AS product_id, COALESCE(p.name, '') AS product_name, p.category_id AS category_id, bi.quantity AS quantity").
		Joins("LEFT JOIN products AS p ON p.product_id = bi.product_id").
		Where("bi.basket_id = ?", basketID).
		Order("bi.added_at ASC, bi.product_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) FindItem(ctx context.Context, basketID uuid.UUID, productID string) (*models.BasketItem, error) {
	var items []models.BasketItem
	if err := r.base.DB(ctx).
		Where("basket_id = ? AND product_id = ?", basketID, productID).
		Limit(1).
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repositoryImpl) CountItems(ctx context.Context, basketID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.BasketItem{}).Where("basket_id = ?", basketID).Count(&count).Error
	return count, err
}

// UpsertItem inserts the item or overwrites the quantity of an existing one. added_at keeps
// its original value.
func (r *repositoryImpl) UpsertItem(ctx context.Context, item *models.BasketItem) error {
	return r.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "basket_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(item).Error
}

func (r *repositoryImpl) CreateItems(ctx context.Context, items []models.BasketItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&items).Error
}

func (r *repositoryImpl) StoreExists(ctx context.Context, storeID string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Store{}).Where("store_id = ?", storeID).Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ProductExists(ctx context.Context, productID string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Product{}).Where("product_id = ?", productID).Count(&count).Error
	return count > 0, err
}

// TrackedPairs lists the distinct (product, store) pairs referenced by basket items, ordered
// by store so callers can group without sorting.
func (r *repositoryImpl) TrackedPairs(ctx context.Context) ([]TrackedPair, error) {
	var pairs []TrackedPair
	err := r.base.DB(ctx).
		Table("basket_items AS bi").
		Select("DISTINCT bi.product_id AS product_id, b.store_id AS store_id").
		Joins("JOIN baskets AS b ON b.id = bi.basket_id").
		Order("b.store_id ASC, bi.product_id ASC").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	return pairs, nil
}
