package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePoint is one observation in the append-only (product, store) price series.
type PricePoint struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  string              `gorm:"column:product_id;not null;index:idx_price_history_partition,priority:1"`
	StoreID    string              `gorm:"column:store_id;type:varchar(8);not null;index:idx_price_history_partition,priority:2"`
	Price      decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	PromoPrice decimal.NullDecimal `gorm:"column:promo_price;type:numeric(10,2)"`
	CapturedAt time.Time           `gorm:"column:captured_at;not null;index:idx_price_history_partition,priority:3"`
}

func (PricePoint) TableName() string {
	return "price_history"
}

func (p *PricePoint) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
