package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Basket is a named, store-scoped shopping list. CreatedAt is set by the service clock and
// anchors base price selection, so it is never auto-populated.
type Basket struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	StoreID        string     `gorm:"column:store_id;type:varchar(8);not null;index:idx_baskets_store_id"`
	IsTemplate     bool       `gorm:"column:is_template;not null;default:false"`
	ParentBasketID *uuid.UUID `gorm:"column:parent_basket_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
}

func (b *Basket) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BasketItem is one product line of a basket, keyed by (basket_id, product_id).
type BasketItem struct {
	BasketID  uuid.UUID `gorm:"column:basket_id;type:uuid;primaryKey"`
	ProductID string    `gorm:"column:product_id;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null"`
	AddedAt   time.Time `gorm:"column:added_at;not null"`
}
