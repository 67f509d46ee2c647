package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScopeOverall marks the basket-wide index row; category rows use CategoryScope.
const ScopeOverall = "overall"

// CategoryScope returns the scope key of a per-category index row.
func CategoryScope(categoryID uuid.UUID) string {
	return fmt.Sprintf("category:%s", categoryID)
}

// InflationIndex is the derived projection replaced in place on every calculation. There is
// one row per (basket, scope).
type InflationIndex struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BasketID         uuid.UUID  `gorm:"column:basket_id;type:uuid;not null;uniqueIndex:uq_inflation_indices_basket_scope,priority:1"`
	Scope            string     `gorm:"column:scope;not null;uniqueIndex:uq_inflation_indices_basket_scope,priority:2"`
	CategoryID       *uuid.UUID `gorm:"column:category_id;type:uuid"`
	BaseIndex        float64    `gorm:"column:base_index;not null"`
	CurrentIndex     float64    `gorm:"column:current_index;not null"`
	InflationPercent float64    `gorm:"column:inflation_percent;not null"`
	BaseDate         time.Time  `gorm:"column:base_date;not null"`
	CalculatedAt     time.Time  `gorm:"column:calculated_at;not null"`
	ItemsResolved    int        `gorm:"column:items_resolved;not null;default:0"`
	ItemsSkipped     int        `gorm:"column:items_skipped;not null;default:0"`
}

func (i *InflationIndex) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
